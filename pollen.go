// Package pollen is an SDK for building tool apps: ordinary Go
// functions declared with typed signatures, compiled into a wire
// schema, and served to an orchestrator over an untyped string
// envelope.
//
// An app registers tools, compiles them once into a descriptor bundle,
// and dispatches incoming calls against that bundle:
//
//	app := pollen.New(pollen.AppInfo{Name: "calculator"})
//	app.MustRegister(&pollen.Tool{
//		Name:        "add",
//		Description: "Adds two integers.",
//		Params: []pollen.Param{
//			{Name: "a", Type: pollen.Int()},
//			{Name: "b", Type: pollen.Int()},
//		},
//		Returns: pollen.Returns(pollen.Int()),
//		Handler: func(ctx context.Context, args pollen.Args) (any, error) {
//			return args.Int("a") + args.Int("b"), nil
//		},
//	})
//	pollen.Main(app)
//
// This file re-exports the subpackage types a tool author touches, so
// app code only imports pollen. The subpackages stay importable on
// their own for callers that want just the schema compiler or the
// envelope codec:
//
//	import "github.com/petal-labs/pollen/schema"
//	import "github.com/petal-labs/pollen/descriptor"
//	import "github.com/petal-labs/pollen/wire"
package pollen

import (
	"github.com/petal-labs/pollen/descriptor"
	"github.com/petal-labs/pollen/schema"
	"github.com/petal-labs/pollen/wire"
)

// Type aliases from the schema package
type (
	// TypeRef is a tagged description of a declared parameter or
	// return type.
	TypeRef = schema.TypeRef

	// RecordType names a flat field set that maps to its own wire
	// message.
	RecordType = schema.RecordType

	// RecordField is a single field of a record.
	RecordField = schema.RecordField

	// Param is one declared tool parameter.
	Param = schema.Param

	// ReturnSpec declares what a tool returns.
	ReturnSpec = schema.ReturnSpec

	// ReturnKind tags how a tool's result is carried on the wire.
	ReturnKind = schema.ReturnKind

	// Declaration is the explicit signature of one tool.
	Declaration = schema.Declaration

	// ToolSchema is one compiled tool: request and response messages
	// plus the return kind.
	ToolSchema = schema.ToolSchema

	// ServiceSchema is an app's compiled tool set.
	ServiceSchema = schema.ServiceSchema

	// MessageSchema is one compiled wire message.
	MessageSchema = schema.MessageSchema

	// FieldSpec is one compiled message field.
	FieldSpec = schema.FieldSpec
)

// Type aliases from the wire and descriptor packages
type (
	// Image is the reserved return wrapper for image-producing tools.
	Image = wire.Image

	// File is the reserved return wrapper for file-producing tools.
	File = wire.File

	// ToolRequest is the untyped envelope for one incoming call.
	ToolRequest = wire.ToolRequest

	// ToolResponse is the untyped envelope for one call's outcome.
	ToolResponse = wire.ToolResponse

	// Bundle is a compiled, immutable descriptor bundle.
	Bundle = descriptor.Bundle
)

// ReturnKind constants
const (
	ReturnPlain = schema.ReturnPlain
	ReturnImage = schema.ReturnImage
	ReturnFile  = schema.ReturnFile
)

// Schema package errors
var (
	ErrUnsupportedType        = schema.ErrUnsupportedType
	ErrUnsupportedNesting     = schema.ErrUnsupportedNesting
	ErrUnknownParameter       = schema.ErrUnknownParameter
	ErrSchemaBuild            = schema.ErrSchemaBuild
	ErrNameCollisionExhausted = schema.ErrNameCollisionExhausted
	ErrAlreadyCompiled        = schema.ErrAlreadyCompiled
	ErrDecodeMismatch         = schema.ErrDecodeMismatch
)

// Type constructors
var (
	Int        = schema.Int
	Float      = schema.Float
	Bool       = schema.Bool
	String     = schema.String
	Bytes      = schema.Bytes
	ListOf     = schema.ListOf
	OptionalOf = schema.OptionalOf
	StringMap  = schema.StringMap
	RecordOf   = schema.RecordOf
)

// Return constructors
var (
	Returns        = schema.Returns
	ReturnsNothing = schema.ReturnsNothing
	ReturnsImage   = schema.ReturnsImage
	ReturnsFile    = schema.ReturnsFile
)

// NewFile wraps an existing file on disk as a tool return value.
var NewFile = wire.NewFile
