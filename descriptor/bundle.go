package descriptor

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/petal-labs/pollen/schema"
)

// ErrUnknownTool reports a tool name the bundle does not define.
var ErrUnknownTool = errors.New("descriptor: unknown tool")

// ErrBundleVersion reports a persisted bundle whose container format
// version this build does not support.
var ErrBundleVersion = errors.New("descriptor: unsupported bundle schema version")

// BundleSchemaVersion is the persisted container format version.
const BundleSchemaVersion = "1"

// Bundle is the compiled, frozen schema set of one app: the service
// schema, the validated file descriptor, and a codec per message.
// Bundles are immutable after assembly and safe for concurrent use.
type Bundle struct {
	app      string
	pkg      string
	fileName string
	service  schema.ServiceSchema

	file      protoreflect.FileDescriptor
	fileProto *descriptorpb.FileDescriptorProto
	codecs    map[string]*Codec
}

func newBundle(app, pkg, fileName string, svc schema.ServiceSchema,
	fd protoreflect.FileDescriptor, fdp *descriptorpb.FileDescriptorProto) (*Bundle, error) {

	byName := make(map[string]schema.MessageSchema, len(svc.Messages))
	for _, m := range svc.Messages {
		byName[m.Name] = m
	}

	codecs := make(map[string]*Codec, len(svc.Messages))
	for _, m := range svc.Messages {
		md, err := messageDescriptor(fd, m.Name)
		if err != nil {
			return nil, err
		}
		codecs[m.Name] = &Codec{spec: m, md: md, byName: byName}
	}

	return &Bundle{
		app:       app,
		pkg:       pkg,
		fileName:  fileName,
		service:   svc,
		file:      fd,
		fileProto: fdp,
		codecs:    codecs,
	}, nil
}

// App returns the app name the bundle was assembled for.
func (b *Bundle) App() string { return b.app }

// Package returns the proto package of the descriptor file.
func (b *Bundle) Package() string { return b.pkg }

// Service returns the compiled service schema.
func (b *Bundle) Service() schema.ServiceSchema { return b.service }

// Tools returns the tool schemas in declaration order.
func (b *Bundle) Tools() []schema.ToolSchema { return b.service.Tools }

// Tool returns the schema of one tool by method name.
func (b *Bundle) Tool(name string) (schema.ToolSchema, bool) {
	return b.service.Tool(name)
}

// FileDescriptor returns the validated descriptor of the schema file.
func (b *Bundle) FileDescriptor() protoreflect.FileDescriptor { return b.file }

// DescriptorSet returns the serializable descriptor set holding the
// schema file.
func (b *Bundle) DescriptorSet() *descriptorpb.FileDescriptorSet {
	return &descriptorpb.FileDescriptorSet{
		File: []*descriptorpb.FileDescriptorProto{proto.Clone(b.fileProto).(*descriptorpb.FileDescriptorProto)},
	}
}

// MessageCodec returns the codec for a message by name.
func (b *Bundle) MessageCodec(name string) (*Codec, error) {
	c, ok := b.codecs[name]
	if !ok {
		return nil, fmt.Errorf("%w: no codec for message %q", schema.ErrSchemaBuild, name)
	}
	return c, nil
}

// RequestCodec returns the request message codec of a tool.
func (b *Bundle) RequestCodec(tool string) (*Codec, error) {
	t, ok := b.service.Tool(tool)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}
	return b.MessageCodec(t.Request.Name)
}

// ResponseCodec returns the response message codec of a tool.
func (b *Bundle) ResponseCodec(tool string) (*Codec, error) {
	t, ok := b.service.Tool(tool)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, tool)
	}
	return b.MessageCodec(t.Response.Name)
}

// EncodeArgs renders native argument values into the canonical string
// map carried by the transport envelope.
func (b *Bundle) EncodeArgs(tool string, values map[string]any) (map[string]string, error) {
	c, err := b.RequestCodec(tool)
	if err != nil {
		return nil, err
	}
	out, err := c.EncodeText(values)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", tool, err)
	}
	return out, nil
}

// DecodeArgs parses an envelope argument map into native values,
// applying declared defaults for absent keys. Unknown keys are
// ignored.
func (b *Bundle) DecodeArgs(tool string, args map[string]string) (map[string]any, error) {
	c, err := b.RequestCodec(tool)
	if err != nil {
		return nil, err
	}
	out, err := c.DecodeText(args)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", tool, err)
	}
	return out, nil
}

// EncodeResult renders a tool's return value into the envelope result
// map under the single response field.
func (b *Bundle) EncodeResult(tool string, value any) (map[string]string, error) {
	c, err := b.ResponseCodec(tool)
	if err != nil {
		return nil, err
	}
	values := map[string]any{}
	if value != nil {
		values[schema.ResponseFieldName] = value
	}
	out, err := c.EncodeText(values)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", tool, err)
	}
	return out, nil
}

// DecodeResult parses an envelope result map into the native return
// value. An absent optional result decodes as nil.
func (b *Bundle) DecodeResult(tool string, results map[string]string) (any, error) {
	c, err := b.ResponseCodec(tool)
	if err != nil {
		return nil, err
	}
	values, err := c.DecodeText(results)
	if err != nil {
		return nil, fmt.Errorf("tool %q: %w", tool, err)
	}
	return values[schema.ResponseFieldName], nil
}

// bundleFile is the persisted container: a flat, versioned document
// holding the service schema and the serialized descriptor set.
type bundleFile struct {
	SchemaVersion string               `json:"schema_version"`
	App           string               `json:"app"`
	Package       string               `json:"package"`
	FileName      string               `json:"file_name"`
	Service       schema.ServiceSchema `json:"service"`
	DescriptorSet []byte               `json:"descriptor_set"`
}

// Marshal serializes the bundle into its versioned JSON container.
func (b *Bundle) Marshal() ([]byte, error) {
	set, err := proto.Marshal(b.DescriptorSet())
	if err != nil {
		return nil, fmt.Errorf("descriptor: marshal descriptor set: %w", err)
	}
	doc := bundleFile{
		SchemaVersion: BundleSchemaVersion,
		App:           b.app,
		Package:       b.pkg,
		FileName:      b.fileName,
		Service:       b.service,
		DescriptorSet: set,
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("descriptor: marshal bundle: %w", err)
	}
	return append(data, '\n'), nil
}

// Unmarshal rebuilds a bundle from its versioned JSON container,
// re-validating the descriptor set against the embedded service
// schema.
func Unmarshal(data []byte) (*Bundle, error) {
	var doc bundleFile
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("descriptor: parse bundle: %w", err)
	}
	if doc.SchemaVersion != BundleSchemaVersion {
		return nil, fmt.Errorf("%w %q", ErrBundleVersion, doc.SchemaVersion)
	}

	var set descriptorpb.FileDescriptorSet
	if err := proto.Unmarshal(doc.DescriptorSet, &set); err != nil {
		return nil, fmt.Errorf("descriptor: parse descriptor set: %w", err)
	}
	if len(set.File) != 1 {
		return nil, fmt.Errorf("descriptor: bundle holds %d descriptor files, want 1", len(set.File))
	}
	fd, err := protodesc.NewFile(set.File[0], nil)
	if err != nil {
		return nil, fmt.Errorf("descriptor: rebuild descriptor: %w", err)
	}

	return newBundle(doc.App, doc.Package, doc.FileName, doc.Service, fd, set.File[0])
}

// WriteFile atomically persists the bundle container to path.
func (b *Bundle) WriteFile(path string) error {
	data, err := b.Marshal()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("descriptor: create bundle dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".bundle-*.json")
	if err != nil {
		return fmt.Errorf("descriptor: create temp bundle: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("descriptor: write bundle: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("descriptor: close bundle: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("descriptor: replace bundle: %w", err)
	}
	return nil
}

// ReadFile loads a persisted bundle container.
func ReadFile(path string) (*Bundle, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("descriptor: read bundle: %w", err)
	}
	return Unmarshal(data)
}
