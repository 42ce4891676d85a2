package client_test

import (
	"context"
	"testing"

	"github.com/petal-labs/pollen/client"
)

type fakePlatform struct {
	inferred []client.InferRequest
	updates  []client.Update
}

func (f *fakePlatform) Infer(_ context.Context, req client.InferRequest) (client.InferResponse, error) {
	f.inferred = append(f.inferred, req)
	return client.InferResponse{Text: "echo: " + req.Prompt}, nil
}

func (f *fakePlatform) Embed(context.Context, client.EmbedRequest) (client.EmbedResponse, error) {
	return client.EmbedResponse{}, client.ErrNotSupported
}

func (f *fakePlatform) AskUser(context.Context, client.UserRequest) (client.UserResponse, error) {
	return client.UserResponse{Response: "yes"}, nil
}

func (f *fakePlatform) ToolUpdate(_ context.Context, update client.Update) error {
	f.updates = append(f.updates, update)
	return nil
}

var _ client.Platform = (*fakePlatform)(nil)

func TestContextRoundTrip(t *testing.T) {
	platform := &fakePlatform{}
	ctx := client.NewContext(context.Background(), platform)

	got, ok := client.FromContext(ctx)
	if !ok {
		t.Fatal("FromContext missed the attached platform")
	}

	resp, err := got.Infer(ctx, client.InferRequest{Prompt: "ping"})
	if err != nil {
		t.Fatalf("Infer error = %v", err)
	}
	if resp.Text != "echo: ping" {
		t.Fatalf("response = %q", resp.Text)
	}
	if len(platform.inferred) != 1 {
		t.Fatalf("platform saw %d calls, want 1", len(platform.inferred))
	}
}

func TestFromContextMissing(t *testing.T) {
	if _, ok := client.FromContext(context.Background()); ok {
		t.Fatal("FromContext found a platform on an empty context")
	}
}

func TestUpdateValidate(t *testing.T) {
	valid := []client.UpdateStatus{
		client.UpdateStarted,
		client.UpdateCompleted,
		client.UpdateFailed,
		client.UpdateCancelled,
	}
	for _, status := range valid {
		if err := (client.Update{Status: status}).Validate(); err != nil {
			t.Fatalf("Validate(%q) = %v", status, err)
		}
	}

	if err := (client.Update{}).Validate(); err == nil {
		t.Fatal("Validate accepted an empty status")
	}
	if err := (client.Update{Status: "paused"}).Validate(); err == nil {
		t.Fatal("Validate accepted an unknown status")
	}
}
