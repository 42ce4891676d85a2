package pollen

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	otelapi "go.opentelemetry.io/otel"

	"github.com/petal-labs/pollen/client"
	"github.com/petal-labs/pollen/devserver"
	pollenotel "github.com/petal-labs/pollen/otel"
	"github.com/petal-labs/pollen/runtime"
	"github.com/petal-labs/pollen/schema"
)

// Main is the standard entry point for an app binary. It wires a
// command tree with "serve" and "schema" subcommands around the app
// and exits the process with a non-zero code on error.
//
//	func main() {
//		pollen.Main(app)
//	}
func Main(app *App) {
	if err := NewCommand(app).Execute(); err != nil {
		os.Exit(1)
	}
}

// NewCommand builds the cobra command tree for an app binary.
func NewCommand(app *App) *cobra.Command {
	info := app.Info()
	short := info.Description
	if short == "" {
		short = fmt.Sprintf("%s tool app", info.Name)
	}
	root := &cobra.Command{
		Use:          schema.SanitizeIdent(info.Name),
		Short:        short,
		SilenceUsage: true,
	}
	root.AddCommand(newServeCmd(app))
	root.AddCommand(newSchemaCmd(app))
	return root
}

func newServeCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the development HTTP server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(app, cmd)
		},
	}

	cmd.Flags().IntP("port", "p", 8080, "Listen port")
	cmd.Flags().String("host", "127.0.0.1", "Listen host")
	cmd.Flags().String("cors-origin", "*", "Allowed CORS origin")
	cmd.Flags().Int64("max-body", 1<<20, "Max request body size in bytes")
	cmd.Flags().Duration("read-timeout", 30*time.Second, "HTTP read timeout")
	cmd.Flags().Duration("write-timeout", 60*time.Second, "HTTP write timeout")
	cmd.Flags().String("history-sqlite", "", "Path to SQLite call history (default: in-memory)")
	cmd.Flags().Int("history-limit", 256, "Maximum retained call records")
	cmd.Flags().String("otlp-endpoint", "", "OTLP HTTP collector for trace export (disabled when empty)")
	cmd.Flags().String("provider", "", "Model provider for platform services (disabled when empty)")
	cmd.Flags().String("model", "", "Default model for platform inference and embeddings")

	return cmd
}

func runServe(app *App, cmd *cobra.Command) error {
	host, _ := cmd.Flags().GetString("host")
	port, _ := cmd.Flags().GetInt("port")
	corsOrigin, _ := cmd.Flags().GetString("cors-origin")
	maxBody, _ := cmd.Flags().GetInt64("max-body")
	readTimeout, _ := cmd.Flags().GetDuration("read-timeout")
	writeTimeout, _ := cmd.Flags().GetDuration("write-timeout")
	historyPath, _ := cmd.Flags().GetString("history-sqlite")
	historyLimit, _ := cmd.Flags().GetInt("history-limit")
	otlpEndpoint, _ := cmd.Flags().GetString("otlp-endpoint")
	providerName, _ := cmd.Flags().GetString("provider")
	model, _ := cmd.Flags().GetString("model")

	bundle, err := compiledBundle(app)
	if err != nil {
		return err
	}

	handlers := app.Handlers()
	if providerName != "" {
		platform, err := client.NewLocal(client.LocalConfig{
			Provider: providerName,
			Model:    model,
			Logger:   slog.Default(),
		})
		if err != nil {
			return fmt.Errorf("creating platform client: %w", err)
		}
		handlers = platformHandlers(platform, handlers)
	}

	if otlpEndpoint != "" {
		shutdownTraces, err := pollenotel.InstallTraceExporter(cmd.Context(), otlpEndpoint)
		if err != nil {
			return fmt.Errorf("installing trace exporter: %w", err)
		}
		defer func() {
			flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = shutdownTraces(flushCtx)
		}()
	}

	var history runtime.HistoryStore
	if historyPath != "" {
		sqliteHistory, err := runtime.NewSQLiteHistory(runtime.SQLiteHistoryConfig{
			DSN:        historyPath,
			MaxRecords: historyLimit,
		})
		if err != nil {
			return fmt.Errorf("opening sqlite call history: %w", err)
		}
		defer func() {
			_ = sqliteHistory.Close()
		}()
		history = sqliteHistory
	} else {
		history = runtime.NewMemoryHistory(historyLimit)
	}

	observer, err := pollenotel.NewDispatchObserver(
		otelapi.GetMeterProvider().Meter("pollen/runtime"),
		otelapi.GetTracerProvider().Tracer("pollen/runtime"),
	)
	if err != nil {
		return fmt.Errorf("initializing dispatch observability: %w", err)
	}
	runtime.SetObserver(observer)
	defer runtime.SetObserver(nil)

	dispatcher, err := runtime.NewDispatcher(runtime.Config{
		Bundle:   bundle,
		Handlers: handlers,
		History:  history,
		Logger:   slog.Default(),
	})
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}

	srv, err := devserver.NewServer(devserver.Config{
		Dispatcher: dispatcher,
		History:    history,
		CORSOrigin: corsOrigin,
		MaxBody:    maxBody,
	})
	if err != nil {
		return fmt.Errorf("creating dev server: %w", err)
	}

	addr := net.JoinHostPort(host, fmt.Sprintf("%d", port))
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		fmt.Fprintf(cmd.OutOrStdout(), "%s listening on %s\n", app.Info().Name, addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(cmd.OutOrStdout(), "Shutting down...")
		// Ends open event streams first; Shutdown waits for active
		// requests, and SSE connections never finish on their own.
		srv.Close()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
}

func newSchemaCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "schema",
		Short: "Print or export the compiled schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSchema(app, cmd)
		},
	}

	cmd.Flags().String("out", "", "Write the schema bundle JSON to this path")
	cmd.Flags().String("proto", "", "Write the proto text to this path")

	return cmd
}

func runSchema(app *App, cmd *cobra.Command) error {
	outPath, _ := cmd.Flags().GetString("out")
	protoPath, _ := cmd.Flags().GetString("proto")

	bundle, err := compiledBundle(app)
	if err != nil {
		return err
	}

	if outPath != "" {
		if err := bundle.WriteFile(outPath); err != nil {
			return fmt.Errorf("writing schema bundle: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", outPath)
	}
	if protoPath != "" {
		if err := os.WriteFile(protoPath, []byte(bundle.RenderProto()), 0o644); err != nil {
			return fmt.Errorf("writing proto text: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", protoPath)
	}
	if outPath == "" && protoPath == "" {
		fmt.Fprint(cmd.OutOrStdout(), bundle.RenderProto())
	}
	return nil
}

// platformHandlers attaches the platform to every handler's context so
// tool code can reach it through client.FromContext.
func platformHandlers(p client.Platform, handlers map[string]runtime.Handler) map[string]runtime.Handler {
	wrapped := make(map[string]runtime.Handler, len(handlers))
	for name, handler := range handlers {
		handler := handler
		wrapped[name] = func(ctx context.Context, args map[string]any) (any, error) {
			return handler(client.NewContext(ctx, p), args)
		}
	}
	return wrapped
}

// compiledBundle returns the app's bundle, compiling it on first use.
func compiledBundle(app *App) (*Bundle, error) {
	if b := app.Bundle(); b != nil {
		return b, nil
	}
	b, err := app.Compile()
	if err != nil {
		return nil, fmt.Errorf("compiling app schema: %w", err)
	}
	return b, nil
}
