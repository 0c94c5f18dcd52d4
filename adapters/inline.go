package adapters

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// InlineSource carries the content in the definition itself
type InlineSource struct {
	Content  string `json:"content"`
	Encoding string `json:"encoding,omitempty"` // "" for text or "base64"
}

func RegisterInline(r *Registry) {
	r.Register(InlineAdapterType, func(raw []byte) (Source, error) {
		var src InlineSource
		if err := json.Unmarshal(raw, &src); err != nil {
			return nil, err
		}
		switch src.Encoding {
		case "", "base64":
		default:
			return nil, fmt.Errorf("unknown inline encoding %q", src.Encoding)
		}
		return &src, nil
	})
}

func (s *InlineSource) Fetch(context.Context) ([]byte, error) {
	if s.Encoding == "base64" {
		return base64.StdEncoding.DecodeString(s.Content)
	}
	return []byte(s.Content), nil
}
