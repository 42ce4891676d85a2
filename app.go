package pollen

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/petal-labs/pollen/descriptor"
	"github.com/petal-labs/pollen/runtime"
	"github.com/petal-labs/pollen/schema"
)

// AppInfo describes the app to the platform.
type AppInfo struct {
	// Name is the short app name; the compiled service name derives
	// from it.
	Name string `json:"name"`

	// FullName is the display name shown to users.
	FullName string `json:"fullname,omitempty"`

	// Description documents the app in the generated schema.
	Description string `json:"description,omitempty"`

	// Goal states what the app is for, shown to the orchestrator.
	Goal string `json:"goal,omitempty"`

	// IconURL optionally points at the app icon.
	IconURL string `json:"icon_url,omitempty"`
}

// App is a set of registered tools plus the bundle compiled from
// them. Registration happens during initialization, possibly from
// multiple paths; Compile freezes the set exactly once, and the
// resulting bundle is immutable and safe to share across concurrent
// dispatchers.
type App struct {
	mu     sync.RWMutex
	info   AppInfo
	tools  map[string]*Tool
	order  []string
	bundle *descriptor.Bundle
}

// New creates an empty app.
func New(info AppInfo) *App {
	return &App{
		info:  info,
		tools: make(map[string]*Tool),
	}
}

// Info returns the app metadata.
func (a *App) Info() AppInfo { return a.info }

// Register validates and adds one tool. A tool whose declaration
// cannot be mapped is rejected here, before compilation, so a broken
// signature never reaches the bundle. Registering after Compile fails
// with ErrAlreadyCompiled.
func (a *App) Register(t *Tool) error {
	if t == nil {
		return fmt.Errorf("pollen: register: nil tool")
	}
	if t.Handler == nil {
		return fmt.Errorf("pollen: register tool %q: nil handler", t.Name)
	}
	if _, err := schema.Inspect(t.declaration()); err != nil {
		return fmt.Errorf("pollen: register: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.bundle != nil {
		return fmt.Errorf("%w: register tool %q", schema.ErrAlreadyCompiled, t.Name)
	}
	if _, exists := a.tools[t.Name]; exists {
		return fmt.Errorf("pollen: tool %q is already registered", t.Name)
	}
	a.tools[t.Name] = t
	a.order = append(a.order, t.Name)
	return nil
}

// MustRegister is like Register but panics on error. Useful in app
// initialization where a bad declaration should stop the process.
func (a *App) MustRegister(t *Tool) {
	if err := a.Register(t); err != nil {
		panic(err)
	}
}

// Tools returns the registered tools in registration order.
func (a *App) Tools() []*Tool {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make([]*Tool, 0, len(a.order))
	for _, name := range a.order {
		out = append(out, a.tools[name])
	}
	return out
}

// Tool returns a registered tool by name.
func (a *App) Tool(name string) (*Tool, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	t, ok := a.tools[name]
	return t, ok
}

// Compile assembles the registered tools into a descriptor bundle and
// freezes the app. It may be called exactly once; a second call fails
// with ErrAlreadyCompiled. Any tool that fails to compile aborts the
// whole bundle.
func (a *App) Compile() (*descriptor.Bundle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.bundle != nil {
		runtime.ObserveCompile(runtime.CompileObservation{
			App:       a.info.Name,
			Success:   false,
			ErrorKind: "already_compiled",
		})
		return nil, fmt.Errorf("%w: app %q", schema.ErrAlreadyCompiled, a.info.Name)
	}

	start := time.Now()
	decls := make([]schema.Declaration, 0, len(a.order))
	for _, name := range a.order {
		decls = append(decls, a.tools[name].declaration())
	}

	bundle, err := descriptor.Assemble(a.info.Name, decls, &descriptor.Options{
		Doc: a.info.Description,
	})
	if err != nil {
		runtime.ObserveCompile(runtime.CompileObservation{
			App:        a.info.Name,
			DurationMS: time.Since(start).Milliseconds(),
			Success:    false,
			ErrorKind:  "schema_build",
		})
		return nil, fmt.Errorf("pollen: compile app %q: %w", a.info.Name, err)
	}

	a.bundle = bundle
	runtime.ObserveCompile(runtime.CompileObservation{
		App:        a.info.Name,
		Service:    bundle.Service().Name,
		Tools:      len(bundle.Tools()),
		Messages:   len(bundle.Service().Messages),
		DurationMS: time.Since(start).Milliseconds(),
		Success:    true,
	})
	return bundle, nil
}

// Bundle returns the compiled bundle, or nil before Compile.
func (a *App) Bundle() *descriptor.Bundle {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.bundle
}

// Handlers adapts the registered tools for the dispatcher.
func (a *App) Handlers() map[string]runtime.Handler {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]runtime.Handler, len(a.tools))
	for name, t := range a.tools {
		h := t.Handler
		out[name] = func(ctx context.Context, args map[string]any) (any, error) {
			return h(ctx, Args(args))
		}
	}
	return out
}
