// Package rpc carries filesystem operations between processes as JSON frames.
//
// A client sends a Request and waits for the Response with the same ID.
// Before serving requests the server announces itself with a "ready"
// control frame, or a "fatal" one when the filesystem could not boot.
package rpc

import (
	"encoding/json"
	"fmt"
)

type RequestType string

const (
	TypeMkdir     RequestType = "mkdir"
	TypeReadDir   RequestType = "readdir"
	TypeReadFile  RequestType = "read_file"
	TypeWriteFile RequestType = "write_file"
	TypeStat      RequestType = "stat"
	TypeRemove    RequestType = "rm"
	TypeRemoveDir RequestType = "rmdir"
	TypeMove      RequestType = "mv"
	TypeCopy      RequestType = "cp"
	TypeDumpState RequestType = "dump_state"
)

// Control frame types. Responses leave Type empty.
const (
	ControlReady = "ready"
	ControlFatal = "fatal"
)

// Request is one operation call. Only the fields its Type needs are set.
type Request struct {
	ID   string      `json:"id"`
	Type RequestType `json:"type"`
	Path string      `json:"path,omitempty"`
	From string      `json:"from,omitempty"`
	To   string      `json:"to,omitempty"`
	Data []byte      `json:"data,omitempty"`
}

// KindNotBooted is the error kind sent when the filesystem has not booted
const KindNotBooted = "not_booted"

// ErrorBody describes a failed call. Kind is the filesystem error token,
// e.g. "not_found", or [KindNotBooted]. It is empty for other failures.
type ErrorBody struct {
	Kind    string `json:"kind,omitempty"`
	Message string `json:"message"`
}

// Response answers the Request with the same ID. A successful call whose
// snapshot could not be saved has OK set and a non-empty Warning.
type Response struct {
	Type    string          `json:"type,omitempty"`
	ID      string          `json:"id,omitempty"`
	OK      bool            `json:"ok"`
	Result  json.RawMessage `json:"result,omitempty"`
	Warning string          `json:"warning,omitempty"`
	Error   *ErrorBody      `json:"error,omitempty"`
}

// IsControl reports whether r is a ready or fatal announcement
func (r *Response) IsControl() bool {
	return r.Type != ""
}

func encodeResult(v any) (json.RawMessage, error) {
	if v == nil {
		return nil, nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return b, nil
}
