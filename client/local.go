package client

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	iriscore "github.com/petal-labs/iris/core"
	"github.com/petal-labs/iris/providers"
	// Auto-register common providers.
	_ "github.com/petal-labs/iris/providers/anthropic"
	_ "github.com/petal-labs/iris/providers/ollama"
	_ "github.com/petal-labs/iris/providers/openai"
)

const (
	defaultTemperature = 0.7
	defaultUserTimeout = 5 * time.Minute
)

// LocalConfig configures the local development platform.
type LocalConfig struct {
	// Provider is the iris provider name, e.g. "openai" or "ollama".
	Provider string

	// APIKey overrides environment-based key resolution.
	APIKey string

	// Model is the default model for Infer and Embed calls that do
	// not name one.
	Model string

	// Input and Output are the operator terminal. Defaults: stdin and
	// stderr.
	Input  io.Reader
	Output io.Writer

	Logger *slog.Logger
}

// Local implements Platform against an iris provider plus the local
// terminal. It serves development runs; hosted platforms replace it.
type Local struct {
	provider iriscore.Provider
	model    string
	input    io.Reader
	output   io.Writer
	logger   *slog.Logger
}

// NewLocal creates a local platform for the named provider. The API
// key resolves from the config, then POLLEN_PROVIDER_{NAME}_API_KEY,
// then the conventional {NAME}_API_KEY.
func NewLocal(cfg LocalConfig) (*Local, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" {
		return nil, errors.New("client: provider name is required")
	}
	key := cfg.APIKey
	if key == "" {
		key = resolveAPIKey(name)
	}
	provider, err := providers.Create(name, key)
	if err != nil {
		return nil, fmt.Errorf("creating provider %q: %w", name, err)
	}
	return newLocal(provider, cfg), nil
}

func newLocal(provider iriscore.Provider, cfg LocalConfig) *Local {
	input := cfg.Input
	if input == nil {
		input = os.Stdin
	}
	output := cfg.Output
	if output == nil {
		output = os.Stderr
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Local{
		provider: provider,
		model:    cfg.Model,
		input:    input,
		output:   output,
		logger:   logger,
	}
}

func resolveAPIKey(name string) string {
	upper := strings.ToUpper(name)
	if key := os.Getenv("POLLEN_PROVIDER_" + upper + "_API_KEY"); key != "" {
		return key
	}
	return os.Getenv(upper + "_API_KEY")
}

// Infer maps the request onto a single-turn chat call. Temperature
// defaults to 0.7; top_p and stop sequences stay with the provider
// defaults.
func (l *Local) Infer(ctx context.Context, req InferRequest) (InferResponse, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return InferResponse{}, errors.New("client: prompt cannot be empty")
	}
	model := req.Model
	if model == "" {
		model = l.model
	}

	chatReq := &iriscore.ChatRequest{
		Model: iriscore.ModelID(model),
		Messages: []iriscore.Message{
			{Role: iriscore.RoleUser, Content: req.Prompt},
		},
	}
	temperature := req.Temperature
	if temperature == 0 {
		temperature = defaultTemperature
	}
	t := float32(temperature)
	chatReq.Temperature = &t
	if req.MaxTokens > 0 {
		maxTokens := req.MaxTokens
		chatReq.MaxTokens = &maxTokens
	}

	resp, err := l.provider.Chat(ctx, chatReq)
	if err != nil {
		return InferResponse{}, fmt.Errorf("provider chat failed: %w", err)
	}
	return InferResponse{
		Text:  resp.Output,
		Model: string(resp.Model),
		Usage: TokenUsage{
			InputTokens:  resp.Usage.PromptTokens,
			OutputTokens: resp.Usage.CompletionTokens,
			TotalTokens:  resp.Usage.TotalTokens,
		},
	}, nil
}

// Embedder is the optional embedding surface of a provider. Providers
// without it make Embed fail with ErrNotSupported.
type Embedder interface {
	Embed(ctx context.Context, texts []string, model string) ([][]float32, error)
}

// Embed delegates to the provider's embedding support when present.
func (l *Local) Embed(ctx context.Context, req EmbedRequest) (EmbedResponse, error) {
	if len(req.Texts) == 0 {
		return EmbedResponse{}, errors.New("client: no texts to embed")
	}
	embedder, ok := l.provider.(Embedder)
	if !ok {
		return EmbedResponse{}, fmt.Errorf("%w: provider %q has no embedding support", ErrNotSupported, l.provider.ID())
	}
	model := req.Model
	if model == "" {
		model = l.model
	}
	vectors, err := embedder.Embed(ctx, req.Texts, model)
	if err != nil {
		return EmbedResponse{}, fmt.Errorf("provider embed failed: %w", err)
	}
	return EmbedResponse{Vectors: vectors}, nil
}

// AskUser prints the prompt to the terminal and reads one line. A
// request timeout or a cancelled context resolves the prompt without
// input.
func (l *Local) AskUser(ctx context.Context, req UserRequest) (UserResponse, error) {
	timeout := req.Timeout
	if timeout <= 0 {
		timeout = defaultUserTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fmt.Fprintln(l.output, req.Prompt)
	if len(req.Options) > 0 {
		fmt.Fprintf(l.output, "[%s] ", strings.Join(req.Options, "/"))
	} else {
		fmt.Fprint(l.output, "> ")
	}

	type readResult struct {
		line string
		err  error
	}
	ch := make(chan readResult, 1)
	go func() {
		reader := bufio.NewReader(l.input)
		line, err := reader.ReadString('\n')
		ch <- readResult{line: strings.TrimSpace(line), err: err}
	}()

	select {
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return UserResponse{TimedOut: true}, nil
		}
		return UserResponse{Cancelled: true}, nil
	case res := <-ch:
		if res.err != nil && res.line == "" {
			return UserResponse{Cancelled: true}, nil
		}
		return UserResponse{Response: res.line}, nil
	}
}

// ToolUpdate logs the progress report.
func (l *Local) ToolUpdate(_ context.Context, update Update) error {
	if err := update.Validate(); err != nil {
		return err
	}
	l.logger.Info("tool update",
		"call_id", update.CallID,
		"status", string(update.Status),
		"message", update.Message,
	)
	return nil
}

var _ Platform = (*Local)(nil)
