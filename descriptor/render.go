package descriptor

import (
	"fmt"
	"strings"

	"github.com/petal-labs/pollen/schema"
)

// RenderProto generates proto3 source text for the bundle's schema
// file. The output is deterministic and meant for humans: docs become
// comments, messages appear in file order, the service lists one rpc
// per tool.
func (b *Bundle) RenderProto() string {
	var sb strings.Builder

	sb.WriteString("syntax = \"proto3\";\n\n")
	fmt.Fprintf(&sb, "package %s;\n", b.pkg)

	for _, m := range b.service.Messages {
		sb.WriteString("\n")
		writeComment(&sb, "", m.Doc)
		fmt.Fprintf(&sb, "message %s {\n", m.Name)
		for _, f := range m.Fields {
			writeComment(&sb, "  ", f.Doc)
			fmt.Fprintf(&sb, "  %s %s = %d;\n", fieldTypeText(f), f.Name, f.Number)
		}
		sb.WriteString("}\n")
	}

	sb.WriteString("\n")
	writeComment(&sb, "", b.service.Doc)
	fmt.Fprintf(&sb, "service %s {\n", b.service.Name)
	for _, t := range b.service.Tools {
		writeComment(&sb, "  ", t.Doc)
		fmt.Fprintf(&sb, "  rpc %s(%s) returns (%s);\n", t.Name, t.Request.Name, t.Response.Name)
	}
	sb.WriteString("}\n")

	return sb.String()
}

func fieldTypeText(f schema.FieldSpec) string {
	if f.Map {
		return fmt.Sprintf("map<string, %s>", f.Wire)
	}
	base := string(f.Wire)
	if f.Wire == schema.WireMessage {
		base = f.TypeName
	}
	switch {
	case f.Repeated:
		return "repeated " + base
	case f.Optional:
		return "optional " + base
	default:
		return base
	}
}

func writeComment(sb *strings.Builder, indent, doc string) {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return
	}
	for _, line := range strings.Split(doc, "\n") {
		fmt.Fprintf(sb, "%s// %s\n", indent, strings.TrimRight(line, " \t"))
	}
}
