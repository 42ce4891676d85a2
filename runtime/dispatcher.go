// Package runtime dispatches untyped envelope calls against a
// compiled descriptor bundle: it decodes string arguments into native
// values, runs the tool handler, and encodes the result back into the
// envelope, tagged with the tool's return kind.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/petal-labs/pollen/descriptor"
	"github.com/petal-labs/pollen/schema"
	"github.com/petal-labs/pollen/wire"
)

// Handler runs one decoded tool invocation.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Config configures a Dispatcher.
type Config struct {
	// Bundle is the compiled schema the dispatcher marshals against.
	Bundle *descriptor.Bundle

	// Handlers maps tool names to their implementations. Every
	// compiled tool needs a handler.
	Handlers map[string]Handler

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// History optionally records every dispatched call.
	History HistoryStore
}

// Dispatcher serves tool calls against an immutable compiled bundle.
// It is safe for concurrent use: each call touches only its own
// buffers and the shared read-only schema.
type Dispatcher struct {
	bundle   *descriptor.Bundle
	handlers map[string]Handler
	log      *slog.Logger
	history  HistoryStore
}

// NewDispatcher validates that handlers and compiled tools line up
// and returns a ready dispatcher.
func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Bundle == nil {
		return nil, errors.New("runtime: dispatcher needs a compiled bundle")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	handlers := make(map[string]Handler, len(cfg.Handlers))
	for name, h := range cfg.Handlers {
		if _, ok := cfg.Bundle.Tool(name); !ok {
			return nil, fmt.Errorf("runtime: handler %q does not match any compiled tool", name)
		}
		handlers[name] = h
	}
	for _, tool := range cfg.Bundle.Tools() {
		if handlers[tool.Name] == nil {
			return nil, fmt.Errorf("runtime: no handler for tool %q", tool.Name)
		}
	}

	return &Dispatcher{
		bundle:   cfg.Bundle,
		handlers: handlers,
		log:      logger,
		history:  cfg.History,
	}, nil
}

// Bundle returns the compiled bundle the dispatcher serves.
func (d *Dispatcher) Bundle() *descriptor.Bundle { return d.bundle }

// Dispatch runs one envelope call end to end. Errors never escape as
// Go errors: every failure is folded into the response envelope so the
// dispatcher survives malformed calls.
func (d *Dispatcher) Dispatch(ctx context.Context, req wire.ToolRequest) wire.ToolResponse {
	callID := uuid.NewString()
	start := time.Now()

	if err := req.Validate(); err != nil {
		return d.fail(ctx, req, callID, start, "invalid_request", err)
	}
	tool, ok := d.bundle.Tool(req.ToolName)
	if !ok {
		return d.fail(ctx, req, callID, start,
			"unknown_tool", fmt.Errorf("%w: %q", descriptor.ErrUnknownTool, req.ToolName))
	}
	if err := ctx.Err(); err != nil {
		return d.fail(ctx, req, callID, start, "canceled", err)
	}

	natives, err := d.bundle.DecodeArgs(req.ToolName, req.Args)
	if err != nil {
		return d.fail(ctx, req, callID, start, "decode_mismatch", err)
	}

	out, err := d.handlers[req.ToolName](ctx, natives)
	if err != nil {
		return d.fail(ctx, req, callID, start, "handler_error",
			fmt.Errorf("tool %q: %w", req.ToolName, err))
	}

	value, err := resultValue(tool, out)
	if err != nil {
		return d.fail(ctx, req, callID, start, "result_mismatch", err)
	}
	results, err := d.bundle.EncodeResult(req.ToolName, value)
	if err != nil {
		return d.fail(ctx, req, callID, start, "encode_result", err)
	}

	resp := wire.ToolResponse{
		ToolName: req.ToolName,
		CallID:   callID,
		Kind:     tool.Return,
		Response: results[schema.ResponseFieldName],
		Results:  results,
	}
	d.record(ctx, req, resp, start)
	emitDispatchObservation(DispatchObservation{
		App:        d.bundle.App(),
		Tool:       req.ToolName,
		CallID:     callID,
		DurationMS: time.Since(start).Milliseconds(),
		Success:    true,
	})
	d.log.Debug("tool dispatched",
		"tool", req.ToolName,
		"call_id", callID,
		"duration_ms", time.Since(start).Milliseconds())
	return resp
}

// resultValue checks a handler's return value against the tool's
// declared return kind and reduces wrappers to their wire reference.
func resultValue(tool schema.ToolSchema, out any) (any, error) {
	switch tool.Return {
	case schema.ReturnImage:
		img, ok := out.(*wire.Image)
		if !ok {
			return nil, fmt.Errorf("%w: tool %q returns an image, handler produced %T",
				schema.ErrDecodeMismatch, tool.Name, out)
		}
		if err := img.Validate(); err != nil {
			return nil, err
		}
		return img.Ref(), nil

	case schema.ReturnFile:
		f, ok := out.(*wire.File)
		if !ok {
			return nil, fmt.Errorf("%w: tool %q returns a file, handler produced %T",
				schema.ErrDecodeMismatch, tool.Name, out)
		}
		if err := f.Validate(); err != nil {
			return nil, err
		}
		return f.Ref(), nil

	default:
		switch out.(type) {
		case *wire.Image, *wire.File:
			return nil, fmt.Errorf("%w: tool %q returns a plain value, handler produced %T",
				schema.ErrDecodeMismatch, tool.Name, out)
		}
		if len(tool.Response.Fields) == 0 {
			return nil, nil
		}
		return out, nil
	}
}

func (d *Dispatcher) fail(ctx context.Context, req wire.ToolRequest, callID string,
	start time.Time, kind string, err error) wire.ToolResponse {

	resp := wire.ToolResponse{
		ToolName: req.ToolName,
		CallID:   callID,
		Error:    err.Error(),
	}
	d.record(ctx, req, resp, start)
	emitDispatchObservation(DispatchObservation{
		App:        d.bundle.App(),
		Tool:       req.ToolName,
		CallID:     callID,
		DurationMS: time.Since(start).Milliseconds(),
		Success:    false,
		ErrorKind:  kind,
	})
	d.log.Warn("tool dispatch failed",
		"tool", req.ToolName,
		"call_id", callID,
		"error_kind", kind,
		"error", err)
	return resp
}

func (d *Dispatcher) record(ctx context.Context, req wire.ToolRequest,
	resp wire.ToolResponse, start time.Time) {

	if d.history == nil {
		return
	}
	rec := CallRecord{
		ID:         resp.CallID,
		App:        d.bundle.App(),
		Tool:       req.ToolName,
		Args:       req.Args,
		Results:    resp.Results,
		Kind:       resp.Kind,
		Error:      resp.Error,
		StartedAt:  start.UTC(),
		DurationMS: time.Since(start).Milliseconds(),
	}
	if err := d.history.Append(ctx, rec); err != nil {
		d.log.Warn("call history append failed", "tool", req.ToolName, "error", err)
	}
}

// DecodeResponse interprets a tool response on the calling side. The
// response kind must match the compiled schema's return kind: a plain
// string where an image or file reference is expected (or the
// reverse) fails with ErrDecodeMismatch. Image and file kinds decode
// into their wrapper types; plain kinds decode into the native return
// value.
func DecodeResponse(b *descriptor.Bundle, resp wire.ToolResponse) (any, error) {
	if resp.Failed() {
		return nil, fmt.Errorf("runtime: tool %q failed: %s", resp.ToolName, resp.Error)
	}
	tool, ok := b.Tool(resp.ToolName)
	if !ok {
		return nil, fmt.Errorf("%w: %q", descriptor.ErrUnknownTool, resp.ToolName)
	}

	kind := resp.Kind
	if kind == "" {
		kind = schema.ReturnPlain
	}
	if kind != tool.Return {
		return nil, fmt.Errorf("%w: tool %q response kind %q does not match schema kind %q",
			schema.ErrDecodeMismatch, resp.ToolName, kind, tool.Return)
	}

	switch tool.Return {
	case schema.ReturnImage:
		ref, err := responseRef(b, resp)
		if err != nil {
			return nil, err
		}
		img := &wire.Image{Name: resp.ToolName}
		if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
			img.URL = ref
		} else {
			img.Base64 = ref
		}
		return img, nil

	case schema.ReturnFile:
		ref, err := responseRef(b, resp)
		if err != nil {
			return nil, err
		}
		return &wire.File{Path: ref, Name: resp.ToolName}, nil

	default:
		return b.DecodeResult(resp.ToolName, resp.Results)
	}
}

// responseRef pulls the reference string out of the result field.
func responseRef(b *descriptor.Bundle, resp wire.ToolResponse) (string, error) {
	v, err := b.DecodeResult(resp.ToolName, resp.Results)
	if err != nil {
		return "", err
	}
	ref, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("%w: tool %q: reference is %T, not a string",
			schema.ErrDecodeMismatch, resp.ToolName, v)
	}
	return ref, nil
}
