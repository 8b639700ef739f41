// Package serialization provides the body codecs a batch can be sent with.
// The client encodes with the configured format and the collections server
// decodes by the request's Content-Type.
package serialization

import (
	"mime"
	"strings"
	"sync"

	"github.com/fxamacker/cbor/v2"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/meftunca/postbench/pkg/config"
	pbjson "github.com/meftunca/postbench/pkg/json"
	"github.com/meftunca/postbench/pkg/types"
)

// Codec converts request bodies to and from one wire format
type Codec interface {
	Marshal(v interface{}) ([]byte, error)
	Unmarshal(data []byte, v interface{}) error

	// Name returns the configured format name
	Name() string

	// ContentType returns the MIME type sent with encoded bodies
	ContentType() string
}

// CodecFactory creates codecs based on configuration
type CodecFactory struct {
	codecs map[config.SerializationType]Codec
	mutex  sync.RWMutex
}

// NewCodecFactory creates a new codec factory
func NewCodecFactory() *CodecFactory {
	return &CodecFactory{
		codecs: make(map[config.SerializationType]Codec),
	}
}

// RegisterCodec registers a codec for a serialization type
func (f *CodecFactory) RegisterCodec(serType config.SerializationType, codec Codec) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.codecs[serType] = codec
}

// GetCodec returns a codec for the specified serialization type
func (f *CodecFactory) GetCodec(serType config.SerializationType) (Codec, error) {
	f.mutex.RLock()
	defer f.mutex.RUnlock()

	codec, exists := f.codecs[serType]
	if !exists {
		return nil, types.NewProbeError(types.ErrCodeSerializationError, "unsupported serialization type").
			WithDetail("type", serType)
	}

	return codec, nil
}

// ForContentType resolves the codec for a Content-Type header. A missing
// header is read as JSON.
func (f *CodecFactory) ForContentType(header string) (Codec, error) {
	if strings.TrimSpace(header) == "" {
		return f.GetCodec(config.SerializationJSON)
	}

	mediaType, _, err := mime.ParseMediaType(header)
	if err != nil {
		return nil, types.NewProbeErrorWithCause(types.ErrCodeDeserializationError, "invalid content type", err).
			WithDetail("content_type", header)
	}

	switch {
	case mediaType == "application/json" || strings.HasSuffix(mediaType, "+json"):
		return f.GetCodec(config.SerializationJSON)
	case mediaType == "application/msgpack" || mediaType == "application/x-msgpack" || mediaType == "application/vnd.msgpack":
		return f.GetCodec(config.SerializationMsgPack)
	case mediaType == "application/cbor":
		return f.GetCodec(config.SerializationCBOR)
	default:
		return nil, types.NewProbeError(types.ErrCodeDeserializationError, "unsupported content type").
			WithDetail("content_type", mediaType)
	}
}

// InitializeDefaultCodecs registers the JSON, MessagePack and CBOR codecs.
// JSON uses the encoder selected by cfg.JSON.
func (f *CodecFactory) InitializeDefaultCodecs(cfg *config.Config) error {
	encoder, err := pbjson.New(cfg.JSON)
	if err != nil {
		return types.NewProbeErrorWithCause(types.ErrCodeInvalidConfig, "json encoder", err)
	}
	f.RegisterCodec(config.SerializationJSON, NewJSONCodec(encoder))

	f.RegisterCodec(config.SerializationMsgPack, NewMsgPackCodec())

	cborCodec, err := NewCBORCodec()
	if err != nil {
		return err
	}
	f.RegisterCodec(config.SerializationCBOR, cborCodec)

	return nil
}

// New returns the codec selected by cfg.Serialization
func New(cfg *config.Config) (Codec, error) {
	factory := NewCodecFactory()
	if err := factory.InitializeDefaultCodecs(cfg); err != nil {
		return nil, err
	}
	return factory.GetCodec(cfg.Serialization.Format)
}

// JSONCodec adapts a pbjson.Encoder
type JSONCodec struct {
	encoder pbjson.Encoder
}

// NewJSONCodec wraps encoder; nil selects the standard library encoder
func NewJSONCodec(encoder pbjson.Encoder) *JSONCodec {
	if encoder == nil {
		encoder = pbjson.NewStandardEncoder(pbjson.DefaultConfig())
	}
	return &JSONCodec{encoder: encoder}
}

func (j *JSONCodec) Marshal(v interface{}) ([]byte, error) {
	data, err := j.encoder.Marshal(v)
	if err != nil {
		return nil, types.ErrSerializationError("json", err)
	}
	return data, nil
}

func (j *JSONCodec) Unmarshal(data []byte, v interface{}) error {
	if err := j.encoder.Unmarshal(data, v); err != nil {
		return types.ErrDeserializationError("json", err)
	}
	return nil
}

func (j *JSONCodec) Name() string {
	return "json"
}

func (j *JSONCodec) ContentType() string {
	return "application/json"
}

// MsgPackCodec implements MessagePack serialization
type MsgPackCodec struct{}

func NewMsgPackCodec() *MsgPackCodec {
	return &MsgPackCodec{}
}

func (m *MsgPackCodec) Marshal(v interface{}) ([]byte, error) {
	data, err := msgpack.Marshal(v)
	if err != nil {
		return nil, types.ErrSerializationError("msgpack", err)
	}
	return data, nil
}

func (m *MsgPackCodec) Unmarshal(data []byte, v interface{}) error {
	if err := msgpack.Unmarshal(data, v); err != nil {
		return types.ErrDeserializationError("msgpack", err)
	}
	return nil
}

func (m *MsgPackCodec) Name() string {
	return "msgpack"
}

func (m *MsgPackCodec) ContentType() string {
	return "application/msgpack"
}

// CBORCodec implements CBOR serialization with canonical key order, so
// equal payloads encode to equal bytes.
type CBORCodec struct {
	encMode cbor.EncMode
	decMode cbor.DecMode
}

// NewCBORCodec creates a new CBOR codec
func NewCBORCodec() (*CBORCodec, error) {
	encOpts := cbor.EncOptions{
		Sort:        cbor.SortCanonical,
		IndefLength: cbor.IndefLengthForbidden,
	}
	decOpts := cbor.DecOptions{
		IndefLength: cbor.IndefLengthForbidden,
	}

	encMode, err := encOpts.EncMode()
	if err != nil {
		return nil, types.ErrSerializationError("cbor", err)
	}
	decMode, err := decOpts.DecMode()
	if err != nil {
		return nil, types.ErrDeserializationError("cbor", err)
	}

	return &CBORCodec{encMode: encMode, decMode: decMode}, nil
}

func (c *CBORCodec) Marshal(v interface{}) ([]byte, error) {
	data, err := c.encMode.Marshal(v)
	if err != nil {
		return nil, types.ErrSerializationError("cbor", err)
	}
	return data, nil
}

func (c *CBORCodec) Unmarshal(data []byte, v interface{}) error {
	if err := c.decMode.Unmarshal(data, v); err != nil {
		return types.ErrDeserializationError("cbor", err)
	}
	return nil
}

func (c *CBORCodec) Name() string {
	return "cbor"
}

func (c *CBORCodec) ContentType() string {
	return "application/cbor"
}
