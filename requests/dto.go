package requests

// NodeRequestDTO is the JSON representation of [NodeRequest]
type NodeRequestDTO struct {
	Path string   `json:"path"`
	Type NodeType `json:"type"`
	ID   *string  `json:"id,omitempty"` // Optional ID used to trace the node in logs
}

// FileRequestDTO is the JSON representation of [FileRequest]
type FileRequestDTO struct {
	NodeRequestDTO
	Sources []SourceConfigDTO `json:"sources"`
}

type DirRequestDTO struct {
	NodeRequestDTO
}

// SourceConfigDTO is the JSON representation of static source fields
//
// Additional fields depend on the "type" value:
//
// Ex. For type="http" (see [adapters.HTTPSource]):
//
//	URL     string            `json:"url"`
//	Method  string            `json:"method,omitempty"`
//	Headers map\[string\]string `json:"headers,omitempty"`
//
// See the adapters package for the fields of the built-in sources.
type SourceConfigDTO struct {
	Type     string `json:"type"`
	Priority *int   `json:"priority,omitempty"` // Lower number = higher priority, defaults to array index
}
