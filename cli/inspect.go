package cli

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/petal-labs/pollen/descriptor"
	"github.com/petal-labs/pollen/pack"
	"github.com/petal-labs/pollen/schema"
)

// NewInspectCmd creates the "inspect" subcommand.
func NewInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <bundle|package>",
		Short: "Show the compiled schema of a bundle or .pollen package",
		Args:  cobra.ExactArgs(1),
		RunE:  runInspect,
	}

	cmd.Flags().Bool("proto", false, "Print the rendered proto source instead of the summary")

	return cmd
}

func runInspect(cmd *cobra.Command, args []string) error {
	bundle, manifest, err := readBundleArtifact(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if showProto, _ := cmd.Flags().GetBool("proto"); showProto {
		fmt.Fprint(out, bundle.RenderProto())
		return nil
	}

	fmt.Fprintf(out, "App:      %s\n", bundle.App())
	fmt.Fprintf(out, "Package:  %s\n", bundle.Package())
	fmt.Fprintf(out, "Service:  %s\n", bundle.Service().Name)
	if manifest != nil && manifest.AppVersion != "" {
		fmt.Fprintf(out, "Version:  %s\n", manifest.AppVersion)
	}
	fmt.Fprintf(out, "Tools:    %d\n\n", len(bundle.Tools()))

	writer := tabwriter.NewWriter(out, 0, 2, 2, ' ', 0)
	fmt.Fprintln(writer, "TOOL\tPARAMS\tRETURNS\tDOC")
	for _, t := range bundle.Tools() {
		fmt.Fprintf(writer, "%s\t%s\t%s\t%s\n", t.Name, paramsLabel(t), returnLabel(t), docLabel(t.Doc))
	}
	return writer.Flush()
}

// readBundleArtifact loads a schema bundle from either a bare bundle
// file or a .pollen package. Packages also yield their manifest.
func readBundleArtifact(filePath string) (*descriptor.Bundle, *pack.Manifest, error) {
	data, err := os.ReadFile(filePath) // #nosec G304 -- path from user CLI arg
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, exitError(exitFileNotFound, "file not found: %s", filePath)
		}
		return nil, nil, exitError(exitFileNotFound, "reading file: %v", err)
	}

	// Zip archives start with "PK"; anything else is treated as a
	// bundle file regardless of extension.
	if bytes.HasPrefix(data, []byte("PK")) {
		return readPackageArtifact(data)
	}

	bundle, err := descriptor.Unmarshal(data)
	if err != nil {
		return nil, nil, bundleReadError(err)
	}
	return bundle, nil, nil
}

func readPackageArtifact(data []byte) (*descriptor.Bundle, *pack.Manifest, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, nil, exitError(exitInputParse, "opening package: %v", err)
	}

	var bundle *descriptor.Bundle
	var manifest *pack.Manifest
	for _, f := range zr.File {
		// Generated entries sit directly under the app directory;
		// deeper files with the same base name belong to the project.
		if strings.Count(f.Name, "/") != 1 {
			continue
		}
		switch path.Base(f.Name) {
		case pack.BundleFile:
			content, err := readZipEntry(f)
			if err != nil {
				return nil, nil, exitError(exitInputParse, "reading %s: %v", f.Name, err)
			}
			bundle, err = descriptor.Unmarshal(content)
			if err != nil {
				return nil, nil, bundleReadError(err)
			}
		case pack.ManifestFile:
			content, err := readZipEntry(f)
			if err != nil {
				return nil, nil, exitError(exitInputParse, "reading %s: %v", f.Name, err)
			}
			var m pack.Manifest
			if err := json.Unmarshal(content, &m); err != nil {
				return nil, nil, exitError(exitInputParse, "parsing %s: %v", f.Name, err)
			}
			manifest = &m
		}
	}
	if bundle == nil {
		return nil, nil, exitError(exitWrongSchema, "package carries no %s entry", pack.BundleFile)
	}
	return bundle, manifest, nil
}

func readZipEntry(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func bundleReadError(err error) error {
	if errors.Is(err, descriptor.ErrBundleVersion) {
		return exitError(exitWrongSchema, "%s", err)
	}
	return exitError(exitInputParse, "%s", err)
}

// typeLabel renders a field type the way a tool author declared it.
func typeLabel(f schema.FieldSpec) string {
	if f.Map {
		return fmt.Sprintf("map<string,%s>", f.Wire)
	}
	base := string(f.Wire)
	if f.Wire == schema.WireMessage {
		base = f.TypeName
	}
	switch {
	case f.Repeated:
		return "[]" + base
	case f.Optional:
		return base + "?"
	}
	return base
}

func paramsLabel(t schema.ToolSchema) string {
	if len(t.Request.Fields) == 0 {
		return "-"
	}
	parts := make([]string, 0, len(t.Request.Fields))
	for _, f := range t.Request.Fields {
		parts = append(parts, f.Name+" "+typeLabel(f))
	}
	return strings.Join(parts, ", ")
}

func returnLabel(t schema.ToolSchema) string {
	switch t.Return {
	case schema.ReturnImage:
		return "image"
	case schema.ReturnFile:
		return "file"
	}
	result, ok := t.Response.Field(schema.ResponseFieldName)
	if !ok {
		return "void"
	}
	return typeLabel(result)
}

func docLabel(doc string) string {
	doc = strings.TrimSpace(doc)
	if doc == "" {
		return "-"
	}
	if i := strings.IndexByte(doc, '\n'); i >= 0 {
		doc = strings.TrimSpace(doc[:i])
	}
	return doc
}
