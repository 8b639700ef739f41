// Package compression implements the Content-Encoding codecs used for
// request bodies. The probe encodes with the configured codec and the
// collections server decodes by the request's Content-Encoding header.
package compression

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/andybalholm/brotli"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"

	"github.com/meftunca/postbench/pkg/config"
	"github.com/meftunca/postbench/pkg/types"
)

// Compressor defines the interface for compression algorithms
type Compressor interface {
	// Compress compresses data
	Compress(data []byte) ([]byte, error)

	// Decompress decompresses data
	Decompress(data []byte) ([]byte, error)

	// Name returns the Content-Encoding token, empty for identity
	Name() string
}

// CompressorFactory resolves compressors by configured type or by
// Content-Encoding header value
type CompressorFactory struct {
	compressors map[config.CompressionType]Compressor
	mutex       sync.RWMutex
}

// NewCompressorFactory creates a new compressor factory
func NewCompressorFactory() *CompressorFactory {
	return &CompressorFactory{
		compressors: make(map[config.CompressionType]Compressor),
	}
}

// RegisterCompressor registers a compressor for a compression type
func (f *CompressorFactory) RegisterCompressor(compType config.CompressionType, compressor Compressor) {
	f.mutex.Lock()
	defer f.mutex.Unlock()
	f.compressors[compType] = compressor
}

// GetCompressor returns a compressor for the specified compression type
func (f *CompressorFactory) GetCompressor(compType config.CompressionType) (Compressor, error) {
	if compType == config.CompressionNone || compType == "" {
		return &NoCompressor{}, nil
	}

	f.mutex.RLock()
	defer f.mutex.RUnlock()

	compressor, exists := f.compressors[compType]
	if !exists {
		return nil, types.NewProbeError(types.ErrCodeCompressionError, "unsupported compression type").
			WithDetail("type", compType)
	}

	return compressor, nil
}

// ForContentEncoding returns the compressor matching a Content-Encoding
// header. Empty and "identity" map to NoCompressor.
func (f *CompressorFactory) ForContentEncoding(header string) (Compressor, error) {
	token := strings.ToLower(strings.TrimSpace(header))
	if token == "" || token == "identity" {
		return &NoCompressor{}, nil
	}
	return f.GetCompressor(config.CompressionType(token))
}

// InitializeDefaultCompressors registers gzip, zstd, brotli and lz4 at the
// configured level
func (f *CompressorFactory) InitializeDefaultCompressors(cfg config.CompressionConfig) error {
	zstdCompressor, err := NewZstdCompressor(cfg.Level)
	if err != nil {
		return err
	}
	f.RegisterCompressor(config.CompressionZstd, zstdCompressor)
	f.RegisterCompressor(config.CompressionGzip, NewGzipCompressor(cfg.Level))
	f.RegisterCompressor(config.CompressionBrotli, NewBrotliCompressor(cfg.Level))
	f.RegisterCompressor(config.CompressionLZ4, NewLZ4Compressor(cfg.Level))

	return nil
}

// New returns the compressor selected by cfg
func New(cfg config.CompressionConfig) (Compressor, error) {
	factory := NewCompressorFactory()
	if err := factory.InitializeDefaultCompressors(cfg); err != nil {
		return nil, err
	}
	return factory.GetCompressor(cfg.Type)
}

// NoCompressor implements a no-op compressor
type NoCompressor struct{}

func (n *NoCompressor) Compress(data []byte) ([]byte, error) {
	return data, nil
}

func (n *NoCompressor) Decompress(data []byte) ([]byte, error) {
	return data, nil
}

func (n *NoCompressor) Name() string {
	return ""
}

// maxDecompressedSize caps the output of Decompress. Request bodies come from
// untrusted clients.
var maxDecompressedSize int64 = 64 << 20

// ErrDecompressedTooLarge is the cause of a decompression error when the
// output would exceed the size cap
var ErrDecompressedTooLarge = errors.New("decompressed data exceeds size limit")

func readLimited(algorithm string, r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxDecompressedSize+1))
	if err != nil {
		return nil, types.ErrDecompressionError(algorithm, err)
	}
	if int64(len(data)) > maxDecompressedSize {
		return nil, types.ErrDecompressionError(algorithm, ErrDecompressedTooLarge)
	}
	return data, nil
}

// ZstdCompressor implements Zstandard compression. EncodeAll and DecodeAll
// are safe for concurrent use, so one encoder and decoder are shared.
type ZstdCompressor struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewZstdCompressor creates a new Zstd compressor
func NewZstdCompressor(level int) (*ZstdCompressor, error) {
	encoderLevel := zstd.SpeedDefault
	if level > 0 {
		encoderLevel = zstd.EncoderLevelFromZstd(level)
	}

	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(encoderLevel),
		zstd.WithZeroFrames(true),
	)
	if err != nil {
		return nil, types.ErrCompressionError("zstd", err)
	}

	decoder, err := zstd.NewReader(nil,
		zstd.WithDecoderMaxMemory(64<<20),
	)
	if err != nil {
		encoder.Close()
		return nil, types.ErrCompressionError("zstd", err)
	}

	return &ZstdCompressor{
		encoder: encoder,
		decoder: decoder,
	}, nil
}

func (z *ZstdCompressor) Compress(data []byte) ([]byte, error) {
	return z.encoder.EncodeAll(data, nil), nil
}

func (z *ZstdCompressor) Decompress(data []byte) ([]byte, error) {
	result, err := z.decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, types.ErrDecompressionError("zstd", err)
	}
	if int64(len(result)) > maxDecompressedSize {
		return nil, types.ErrDecompressionError("zstd", ErrDecompressedTooLarge)
	}
	return result, nil
}

func (z *ZstdCompressor) Name() string {
	return "zstd"
}

// GzipCompressor implements Gzip compression
type GzipCompressor struct {
	level int
}

func NewGzipCompressor(level int) *GzipCompressor {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	return &GzipCompressor{level: level}
}

func (g *GzipCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer, err := gzip.NewWriterLevel(&buf, g.level)
	if err != nil {
		return nil, types.ErrCompressionError("gzip", err)
	}
	if _, err := writer.Write(data); err != nil {
		return nil, types.ErrCompressionError("gzip", err)
	}
	if err := writer.Close(); err != nil {
		return nil, types.ErrCompressionError("gzip", err)
	}
	return buf.Bytes(), nil
}

func (g *GzipCompressor) Decompress(data []byte) ([]byte, error) {
	reader, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, types.ErrDecompressionError("gzip", err)
	}
	defer reader.Close()

	return readLimited("gzip", reader)
}

func (g *GzipCompressor) Name() string {
	return "gzip"
}

// BrotliCompressor implements Brotli compression
type BrotliCompressor struct {
	level int
}

func NewBrotliCompressor(level int) *BrotliCompressor {
	if level == 0 {
		level = brotli.DefaultCompression
	}
	return &BrotliCompressor{level: level}
}

func (b *BrotliCompressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := brotli.NewWriterLevel(&buf, b.level)
	if _, err := writer.Write(data); err != nil {
		return nil, types.ErrCompressionError("brotli", err)
	}
	if err := writer.Close(); err != nil {
		return nil, types.ErrCompressionError("brotli", err)
	}
	return buf.Bytes(), nil
}

func (b *BrotliCompressor) Decompress(data []byte) ([]byte, error) {
	return readLimited("brotli", brotli.NewReader(bytes.NewReader(data)))
}

func (b *BrotliCompressor) Name() string {
	return "br"
}

// LZ4Compressor implements LZ4 frame compression. The "lz4" token is not a
// registered Content-Encoding; both ends of a run must agree on it.
type LZ4Compressor struct {
	level lz4.CompressionLevel
}

var lz4Levels = [...]lz4.CompressionLevel{
	lz4.Fast,
	lz4.Level1, lz4.Level2, lz4.Level3,
	lz4.Level4, lz4.Level5, lz4.Level6,
	lz4.Level7, lz4.Level8, lz4.Level9,
}

// NewLZ4Compressor maps levels 1-9 to the lz4 levels; 0 selects Fast and
// anything above 9 is clamped.
func NewLZ4Compressor(level int) *LZ4Compressor {
	switch {
	case level < 0:
		level = 0
	case level > 9:
		level = 9
	}
	return &LZ4Compressor{level: lz4Levels[level]}
}

// Level returns the lz4 level used by Compress
func (l *LZ4Compressor) Level() lz4.CompressionLevel {
	return l.level
}

func (l *LZ4Compressor) Compress(data []byte) ([]byte, error) {
	var buf bytes.Buffer
	writer := lz4.NewWriter(&buf)
	if err := writer.Apply(lz4.CompressionLevelOption(l.level)); err != nil {
		return nil, types.ErrCompressionError("lz4", err)
	}
	if _, err := writer.Write(data); err != nil {
		return nil, types.ErrCompressionError("lz4", err)
	}
	if err := writer.Close(); err != nil {
		return nil, types.ErrCompressionError("lz4", err)
	}
	return buf.Bytes(), nil
}

func (l *LZ4Compressor) Decompress(data []byte) ([]byte, error) {
	return readLimited("lz4", lz4.NewReader(bytes.NewReader(data)))
}

func (l *LZ4Compressor) Name() string {
	return "lz4"
}
