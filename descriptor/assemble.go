// Package descriptor lowers compiled schemas to protobuf descriptors
// and provides the payload codecs built on them. A Bundle couples one
// app's service schema with its validated FileDescriptor, a dynamic
// message codec per wire message, and the canonical text encoding used
// by the untyped transport envelope.
package descriptor

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/types/descriptorpb"

	"github.com/petal-labs/pollen/schema"
)

// Options adjusts descriptor assembly. The zero value derives
// everything from the app name.
type Options struct {
	// Doc becomes the service doc in rendered schema text.
	Doc string

	// Package overrides the proto package. Default: "pollen.<app>".
	Package string

	// FileName overrides the virtual descriptor file name.
	// Default: "<app>.proto".
	FileName string
}

// Assemble compiles the declarations into a service schema, lowers it
// to a proto3 file descriptor, validates the descriptor, and returns
// the bundle with ready codecs. Each call is an independent build
// pass; freeze-once semantics apply within a pass and to the app that
// owns the declarations.
func Assemble(appName string, decls []schema.Declaration, opts *Options) (*Bundle, error) {
	if opts == nil {
		opts = &Options{}
	}

	svc, err := schema.BuildService(appName, opts.Doc, decls)
	if err != nil {
		return nil, err
	}

	slug := schema.SanitizeIdent(appName)
	pkg := opts.Package
	if pkg == "" {
		pkg = "pollen." + slug
	}
	fileName := opts.FileName
	if fileName == "" {
		fileName = slug + ".proto"
	}

	fdp, err := lowerFile(pkg, fileName, svc)
	if err != nil {
		return nil, err
	}
	fd, err := protodesc.NewFile(fdp, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: descriptor validation: %v", schema.ErrSchemaBuild, err)
	}

	return newBundle(appName, pkg, fileName, svc, fd, fdp)
}

// lowerFile maps a service schema onto a proto3 FileDescriptorProto.
func lowerFile(pkg, fileName string, svc schema.ServiceSchema) (*descriptorpb.FileDescriptorProto, error) {
	f := &descriptorpb.FileDescriptorProto{
		Name:    proto.String(fileName),
		Package: proto.String(pkg),
		Syntax:  proto.String("proto3"),
	}

	for _, m := range svc.Messages {
		dp, err := lowerMessage(pkg, m)
		if err != nil {
			return nil, err
		}
		f.MessageType = append(f.MessageType, dp)
	}

	sd := &descriptorpb.ServiceDescriptorProto{Name: proto.String(svc.Name)}
	for _, t := range svc.Tools {
		sd.Method = append(sd.Method, &descriptorpb.MethodDescriptorProto{
			Name:       proto.String(t.Name),
			InputType:  proto.String("." + pkg + "." + t.Request.Name),
			OutputType: proto.String("." + pkg + "." + t.Response.Name),
		})
	}
	f.Service = []*descriptorpb.ServiceDescriptorProto{sd}

	return f, nil
}

func lowerMessage(pkg string, m schema.MessageSchema) (*descriptorpb.DescriptorProto, error) {
	dp := &descriptorpb.DescriptorProto{Name: proto.String(m.Name)}

	oneofs := int32(0)
	for _, fs := range m.Fields {
		fd := &descriptorpb.FieldDescriptorProto{
			Name:   proto.String(fs.Name),
			Number: proto.Int32(fs.Number),
		}

		switch {
		case fs.Map:
			entry, err := mapEntry(fs)
			if err != nil {
				return nil, fmt.Errorf("message %q field %q: %w", m.Name, fs.Name, err)
			}
			dp.NestedType = append(dp.NestedType, entry)
			fd.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
			fd.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
			fd.TypeName = proto.String("." + pkg + "." + m.Name + "." + entry.GetName())

		case fs.Repeated:
			fd.Label = descriptorpb.FieldDescriptorProto_LABEL_REPEATED.Enum()
			if err := setFieldType(fd, fs, pkg); err != nil {
				return nil, fmt.Errorf("message %q field %q: %w", m.Name, fs.Name, err)
			}

		default:
			fd.Label = descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum()
			if err := setFieldType(fd, fs, pkg); err != nil {
				return nil, fmt.Errorf("message %q field %q: %w", m.Name, fs.Name, err)
			}
			// Optional scalars need explicit presence: a synthetic
			// oneof per field, declared in field order. Message
			// fields track presence on their own.
			if fs.Optional && fs.Wire != schema.WireMessage {
				fd.Proto3Optional = proto.Bool(true)
				fd.OneofIndex = proto.Int32(oneofs)
				dp.OneofDecl = append(dp.OneofDecl, &descriptorpb.OneofDescriptorProto{
					Name: proto.String("_" + fs.Name),
				})
				oneofs++
			}
		}

		dp.Field = append(dp.Field, fd)
	}

	return dp, nil
}

// mapEntry synthesizes the nested map-entry message for a string-keyed
// map field, following the generated-code convention: the entry is
// named after the field, holds key = 1 and value = 2, and carries the
// map_entry option.
func mapEntry(fs schema.FieldSpec) (*descriptorpb.DescriptorProto, error) {
	valueType, err := scalarType(fs.Wire)
	if err != nil {
		return nil, err
	}
	return &descriptorpb.DescriptorProto{
		Name:    proto.String(schema.CamelCase(fs.Name) + "Entry"),
		Options: &descriptorpb.MessageOptions{MapEntry: proto.Bool(true)},
		Field: []*descriptorpb.FieldDescriptorProto{
			{
				Name:   proto.String("key"),
				Number: proto.Int32(1),
				Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:   descriptorpb.FieldDescriptorProto_TYPE_STRING.Enum(),
			},
			{
				Name:   proto.String("value"),
				Number: proto.Int32(2),
				Label:  descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
				Type:   valueType.Enum(),
			},
		},
	}, nil
}

func setFieldType(fd *descriptorpb.FieldDescriptorProto, fs schema.FieldSpec, pkg string) error {
	if fs.Wire == schema.WireMessage {
		if fs.TypeName == "" {
			return fmt.Errorf("%w: message field without type name", schema.ErrSchemaBuild)
		}
		fd.Type = descriptorpb.FieldDescriptorProto_TYPE_MESSAGE.Enum()
		fd.TypeName = proto.String("." + pkg + "." + fs.TypeName)
		return nil
	}
	t, err := scalarType(fs.Wire)
	if err != nil {
		return err
	}
	fd.Type = t.Enum()
	return nil
}

func scalarType(w schema.WireType) (descriptorpb.FieldDescriptorProto_Type, error) {
	switch w {
	case schema.WireInt32:
		return descriptorpb.FieldDescriptorProto_TYPE_INT32, nil
	case schema.WireFloat:
		return descriptorpb.FieldDescriptorProto_TYPE_FLOAT, nil
	case schema.WireBool:
		return descriptorpb.FieldDescriptorProto_TYPE_BOOL, nil
	case schema.WireString:
		return descriptorpb.FieldDescriptorProto_TYPE_STRING, nil
	case schema.WireBytes:
		return descriptorpb.FieldDescriptorProto_TYPE_BYTES, nil
	default:
		return 0, fmt.Errorf("%w: wire type %q has no scalar descriptor form", schema.ErrSchemaBuild, w)
	}
}

// messageDescriptor resolves a top-level message by name.
func messageDescriptor(fd protoreflect.FileDescriptor, name string) (protoreflect.MessageDescriptor, error) {
	md := fd.Messages().ByName(protoreflect.Name(name))
	if md == nil {
		return nil, fmt.Errorf("%w: message %q missing from descriptor", schema.ErrSchemaBuild, name)
	}
	return md, nil
}
