// Package wire defines the untyped envelope that carries tool calls.
// Every argument and result crosses the transport as a string; the
// typed schema compiled at registration time is what gives those
// strings meaning on both sides.
package wire

import (
	"fmt"

	"github.com/petal-labs/pollen/schema"
)

// ToolRequest asks for one tool invocation. Args values use the
// canonical text encoding of the tool's request schema.
type ToolRequest struct {
	ToolName string            `json:"tool_name"`
	Args     map[string]string `json:"args,omitempty"`
}

// Validate checks the request shape before dispatch.
func (r ToolRequest) Validate() error {
	if r.ToolName == "" {
		return fmt.Errorf("wire: tool name cannot be empty")
	}
	return nil
}

// ToolResponse carries one invocation's outcome. Results holds the
// encoded response fields; Response mirrors the primary result field
// for callers that only want the headline value. Kind tags how the
// callee encoded its result so the caller can tell a plain string from
// an image or file reference.
type ToolResponse struct {
	ToolName string            `json:"tool_name"`
	CallID   string            `json:"call_id,omitempty"`
	Kind     schema.ReturnKind `json:"kind,omitempty"`
	Response string            `json:"response,omitempty"`
	Results  map[string]string `json:"results,omitempty"`
	Error    string            `json:"error,omitempty"`
}

// Failed reports whether the invocation produced an error instead of a
// result.
func (r ToolResponse) Failed() bool { return r.Error != "" }
