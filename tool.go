package pollen

import (
	"context"

	"github.com/petal-labs/pollen/schema"
)

// Handler runs one tool invocation. Args carries the decoded native
// argument values keyed by parameter name. The returned value must
// match the declared return spec: a native value for plain returns, a
// *pollen.Image for image returns, a *pollen.File for file returns,
// or nil for tools declared with ReturnsNothing.
type Handler func(ctx context.Context, args Args) (any, error)

// Tool is one declared tool: its signature plus the handler that runs
// it. Registration validates the declaration; compilation turns it
// into wire messages.
type Tool struct {
	// Name is the tool's wire name, a lowercase identifier.
	Name string

	// Description documents the tool in the generated schema.
	Description string

	// Icon optionally names an icon asset shown by the platform.
	Icon string

	// Params in declaration order. Order fixes field numbering, so
	// reordering parameters is a breaking schema change.
	Params []Param

	// Returns declares the result shape and kind.
	Returns ReturnSpec

	// ArgDocs optionally documents parameters by name. Every key must
	// name a declared parameter.
	ArgDocs map[string]string

	// Handler is invoked by the dispatcher for each call.
	Handler Handler
}

// declaration lowers the tool to its schema form.
func (t *Tool) declaration() schema.Declaration {
	return schema.Declaration{
		Name:    t.Name,
		Doc:     t.Description,
		Icon:    t.Icon,
		Params:  t.Params,
		Return:  t.Returns,
		ArgDocs: t.ArgDocs,
	}
}
