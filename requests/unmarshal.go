// Package requests loads node definitions (directories and files with
// their content sources) and applies them to a filesystem.
package requests

import (
	"encoding/json"
	"errors"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/brettbedarf/webvfs/adapters"
	"github.com/brettbedarf/webvfs/filesystem"
)

// NodeType valid types are FileNodeType "file", DirNodeType "dir"
type NodeType string

const (
	FileNodeType NodeType = "file"
	DirNodeType  NodeType = "dir"
)

// NodeRequest has common fields embedded in concrete request types
type NodeRequest struct {
	Path string // normalized
	Type NodeType
	ID   string
}

// FileSource is one candidate for a file's content
type FileSource struct {
	adapters.Source
	Priority int
}

// FileRequest creates or replaces a file with the content of the first
// source that can be fetched. Sources are sorted by priority.
type FileRequest struct {
	NodeRequest
	Sources []FileSource
}

// DirRequest creates a directory and its missing ancestors
type DirRequest struct {
	NodeRequest
}

// Requests is a parsed node definition list
type Requests struct {
	Dirs  []*DirRequest
	Files []*FileRequest
}

// GetNodeType extracts the node type from JSON without full unmarshaling
func GetNodeType(data []byte) (NodeType, error) {
	var meta struct {
		Type NodeType `json:"type"`
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return "", err
	}
	return meta.Type, nil
}

// Parse reads a JSON array of node definitions. Invalid entries are
// skipped and reported together in the returned error; the valid ones are
// still returned.
func Parse(data []byte, reg *adapters.Registry) (*Requests, error) {
	var rawNodes []json.RawMessage
	if err := json.Unmarshal(data, &rawNodes); err != nil {
		return nil, fmt.Errorf("node definitions: %w", err)
	}

	reqs := &Requests{}
	var errs []error
	for i, raw := range rawNodes {
		nodeType, err := GetNodeType(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("node %d: %w", i, err))
			continue
		}
		switch nodeType {
		case FileNodeType:
			req, err := UnmarshalFileRequest(raw, reg)
			if err != nil {
				errs = append(errs, fmt.Errorf("node %d: %w", i, err))
				continue
			}
			reqs.Files = append(reqs.Files, req)
		case DirNodeType:
			req, err := UnmarshalDirRequest(raw)
			if err != nil {
				errs = append(errs, fmt.Errorf("node %d: %w", i, err))
				continue
			}
			reqs.Dirs = append(reqs.Dirs, req)
		default:
			errs = append(errs, fmt.Errorf("node %d: unknown node type %q", i, nodeType))
		}
	}
	return reqs, errors.Join(errs...)
}

// UnmarshalFileRequest handles file-specific unmarshaling with sources
func UnmarshalFileRequest(data []byte, reg *adapters.Registry) (*FileRequest, error) {
	var dto FileRequestDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}
	node, err := convertNodeDTO(dto.NodeRequestDTO)
	if err != nil {
		return nil, err
	}
	if len(dto.Sources) == 0 {
		return nil, fmt.Errorf("file %s has no sources", node.Path)
	}

	sources, err := unmarshalSources(dto.Sources, data, reg)
	if err != nil {
		return nil, fmt.Errorf("file %s: %w", node.Path, err)
	}
	return &FileRequest{NodeRequest: node, Sources: sources}, nil
}

// UnmarshalDirRequest handles explicit directory unmarshaling (no sources)
func UnmarshalDirRequest(data []byte) (*DirRequest, error) {
	var dto DirRequestDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, err
	}
	node, err := convertNodeDTO(dto.NodeRequestDTO)
	if err != nil {
		return nil, err
	}
	return &DirRequest{NodeRequest: node}, nil
}

// Helper function to process sources array
func unmarshalSources(sourceDTOs []SourceConfigDTO, rawData []byte, reg *adapters.Registry) ([]FileSource, error) {
	// Extract raw sources array from JSON for adapter registry
	var rawMessage struct {
		Sources []json.RawMessage `json:"sources"`
	}
	if err := json.Unmarshal(rawData, &rawMessage); err != nil {
		return nil, err
	}

	sources := make([]FileSource, 0, len(rawMessage.Sources))
	for i, rawSource := range rawMessage.Sources {
		src, err := reg.NewSource(rawSource)
		if err != nil {
			return nil, fmt.Errorf("source %d: %w", i, err)
		}

		// Apply priority default
		priority := i
		if sourceDTOs[i].Priority != nil {
			priority = *sourceDTOs[i].Priority
		}
		sources = append(sources, FileSource{Source: src, Priority: priority})
	}
	slices.SortStableFunc(sources, func(a, b FileSource) int { return a.Priority - b.Priority })
	return sources, nil
}

func convertNodeDTO(dto NodeRequestDTO) (NodeRequest, error) {
	if dto.Path == "" {
		return NodeRequest{}, fmt.Errorf("%s node has no path", dto.Type)
	}
	p := filesystem.Normalize(dto.Path)
	if p == filesystem.Root && dto.Type == FileNodeType {
		return NodeRequest{}, fmt.Errorf("file node cannot be %s", p)
	}
	return NodeRequest{
		Path: p,
		Type: dto.Type,
		ID:   valueOrDefault(dto.ID, uuid.NewString()),
	}, nil
}

func valueOrDefault[T any](ptr *T, defaultVal T) T {
	if ptr != nil {
		return *ptr
	}
	return defaultVal
}
