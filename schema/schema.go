package schema

// ReturnKind labels what a tool's single response field carries.
// Plain results hold the declared payload directly; image and file
// results hold a string reference that the caller resolves.
type ReturnKind string

const (
	ReturnPlain ReturnKind = "plain"
	ReturnImage ReturnKind = "image"
	ReturnFile  ReturnKind = "file"
)

// FieldSpec is one field of a wire message. Numbers are assigned from
// declaration order, starting at 1, and are never reused within a
// message even across rebuilds of the same declaration.
type FieldSpec struct {
	Name     string   `json:"name"`
	Number   int32    `json:"number"`
	Wire     WireType `json:"wire"`
	Repeated bool     `json:"repeated,omitempty"`
	Optional bool     `json:"optional,omitempty"`

	// Map marks the string-keyed map encoding. Wire then holds the
	// value type.
	Map bool `json:"map,omitempty"`

	// TypeName is the resolved message name for WireMessage fields.
	TypeName string `json:"type_name,omitempty"`

	Doc string `json:"doc,omitempty"`

	// Default is the declared fallback applied when an argument is
	// absent at decode time. HasDefault distinguishes "no default"
	// from a zero-valued one.
	Default    any  `json:"default,omitempty"`
	HasDefault bool `json:"has_default,omitempty"`
}

// MessageSchema is one wire message: a name and its ordered fields.
type MessageSchema struct {
	Name   string      `json:"name"`
	Doc    string      `json:"doc,omitempty"`
	Fields []FieldSpec `json:"fields"`
}

// Field returns the field named name.
func (m MessageSchema) Field(name string) (FieldSpec, bool) {
	for _, f := range m.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// ResponseFieldName is the single field every response message carries.
const ResponseFieldName = "result"

// ToolSchema is the compiled schema of one tool: its method name, the
// request and response messages, and the return kind.
type ToolSchema struct {
	Name     string        `json:"name"`
	Doc      string        `json:"doc,omitempty"`
	Icon     string        `json:"icon,omitempty"`
	Request  MessageSchema `json:"request"`
	Response MessageSchema `json:"response"`
	Return   ReturnKind    `json:"return"`
}

// ServiceSchema is the compiled schema set of one app: a service with
// one method per tool and every message the file defines, in a
// deterministic order. Record messages appear before the tool that
// first references them.
type ServiceSchema struct {
	Name     string          `json:"name"`
	Doc      string          `json:"doc,omitempty"`
	Tools    []ToolSchema    `json:"tools"`
	Messages []MessageSchema `json:"messages"`
}

// Tool returns the tool schema with the given method name.
func (s ServiceSchema) Tool(name string) (ToolSchema, bool) {
	for _, t := range s.Tools {
		if t.Name == name {
			return t, true
		}
	}
	return ToolSchema{}, false
}

// Message returns the message schema with the given name.
func (s ServiceSchema) Message(name string) (MessageSchema, bool) {
	for _, m := range s.Messages {
		if m.Name == name {
			return m, true
		}
	}
	return MessageSchema{}, false
}
