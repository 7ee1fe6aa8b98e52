package models

import "encoding/json"

// ToolRequest is a mid-stream request from the remote AI for host-side data.
type ToolRequest struct {
	ID     string         `json:"tool_call_id"`
	Name   string         `json:"name"`
	Params map[string]any `json:"params,omitempty"`
}

// ToolResult pairs a ToolRequest id with fetched data or an error string.
// Exactly one of Result and Error is set.
type ToolResult struct {
	ID     string          `json:"tool_call_id"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// IsError reports whether the result carries an error string.
func (r ToolResult) IsError() bool {
	return r.Error != ""
}
