package json

import (
	"github.com/bytedance/sonic"
)

// SonicEncoder encodes bodies with bytedance/sonic. Decoded strings are
// copied: the collections server decodes straight out of Fiber's request
// buffer, which is reused after the handler returns.
type SonicEncoder struct {
	api sonic.API
}

func NewSonicEncoder(config Config) *SonicEncoder {
	return &SonicEncoder{
		api: sonic.Config{
			EscapeHTML: config.EscapeHTML,
			CopyString: true,
		}.Froze(),
	}
}

func (e *SonicEncoder) Marshal(v interface{}) ([]byte, error) {
	return e.api.Marshal(v)
}

func (e *SonicEncoder) Unmarshal(data []byte, v interface{}) error {
	return e.api.Unmarshal(data, v)
}

func (e *SonicEncoder) Library() JSONLibrary {
	return JSONLibrarySonic
}
