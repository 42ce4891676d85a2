// Package client gives tool handlers access to platform services:
// model inference, text embeddings, operator prompts, and progress
// updates. Handlers reach the platform through the request context, so
// the same tool code runs against the local development platform or a
// hosted one.
package client

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrNotSupported marks a platform operation the backing implementation
// cannot serve, such as embeddings on a chat-only provider.
var ErrNotSupported = errors.New("client: operation not supported")

// InferRequest is one text generation call.
type InferRequest struct {
	Prompt string `json:"prompt"`
	Model  string `json:"model,omitempty"`

	// MaxTokens caps the generated output. Zero leaves the provider
	// default in place.
	MaxTokens int `json:"max_tokens,omitempty"`

	// Temperature controls sampling. Zero means the platform default
	// of 0.7.
	Temperature float64 `json:"temperature,omitempty"`

	// TopP is nucleus sampling. Zero means the platform default of 1.0.
	TopP float64 `json:"top_p,omitempty"`

	Stop []string `json:"stop,omitempty"`
}

// TokenUsage reports token counts for one inference call.
type TokenUsage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// InferResponse is the result of one generation call.
type InferResponse struct {
	Text  string     `json:"text"`
	Model string     `json:"model,omitempty"`
	Usage TokenUsage `json:"usage"`
}

// EmbedRequest asks for one embedding vector per input text.
type EmbedRequest struct {
	Texts []string `json:"texts"`
	Model string   `json:"model,omitempty"`
}

// EmbedResponse carries the vectors in input order.
type EmbedResponse struct {
	Vectors [][]float32 `json:"vectors"`
}

// UserRequest prompts the operator for input. Options, when set,
// restrict the answer to one of the listed choices.
type UserRequest struct {
	Prompt  string        `json:"prompt"`
	Options []string      `json:"options,omitempty"`
	Timeout time.Duration `json:"timeout,omitempty"`
}

// UserResponse is the operator's answer. Cancelled and TimedOut
// distinguish the two ways a prompt can end without input.
type UserResponse struct {
	Response  string `json:"response"`
	Cancelled bool   `json:"cancelled,omitempty"`
	TimedOut  bool   `json:"timeout,omitempty"`
}

// UpdateStatus is the lifecycle phase reported by a progress update.
type UpdateStatus string

const (
	UpdateStarted   UpdateStatus = "started"
	UpdateCompleted UpdateStatus = "completed"
	UpdateFailed    UpdateStatus = "failed"
	UpdateCancelled UpdateStatus = "cancelled"
)

// Update is a progress report for one in-flight tool call.
type Update struct {
	CallID  string       `json:"call_id,omitempty"`
	Status  UpdateStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}

// Validate checks the update carries a known status.
func (u Update) Validate() error {
	switch u.Status {
	case UpdateStarted, UpdateCompleted, UpdateFailed, UpdateCancelled:
		return nil
	case "":
		return errors.New("client: update status cannot be empty")
	default:
		return fmt.Errorf("client: unknown update status %q", u.Status)
	}
}

// Platform is the set of services the hosting platform provides to
// tool handlers.
type Platform interface {
	// Infer runs one text generation call.
	Infer(ctx context.Context, req InferRequest) (InferResponse, error)

	// Embed computes embedding vectors for the request texts.
	Embed(ctx context.Context, req EmbedRequest) (EmbedResponse, error)

	// AskUser prompts the operator and waits for an answer, the
	// request timeout, or context cancellation.
	AskUser(ctx context.Context, req UserRequest) (UserResponse, error)

	// ToolUpdate reports call progress back to the platform.
	ToolUpdate(ctx context.Context, update Update) error
}

// platformKey is an unexported type used as the context key for
// Platform. Using an unexported struct type prevents collisions with
// keys from other packages.
type platformKey struct{}

// NewContext attaches a platform to the context.
func NewContext(ctx context.Context, p Platform) context.Context {
	return context.WithValue(ctx, platformKey{}, p)
}

// FromContext retrieves the platform from the context.
func FromContext(ctx context.Context) (Platform, bool) {
	p, ok := ctx.Value(platformKey{}).(Platform)
	return p, ok
}
