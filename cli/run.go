package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/petal-labs/pollen/wire"
)

// healthPollInterval paces dev server startup probes in one-shot mode.
const healthPollInterval = 100 * time.Millisecond

// NewRunCmd creates the "run" subcommand.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [dir]",
		Short: "Run a tool app's dev server, or call one tool and exit",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runRun,
	}

	cmd.Flags().StringP("tool", "t", "", "Call this tool once and print the response envelope")
	cmd.Flags().StringArrayP("arg", "a", nil, "Tool argument as name=value (repeatable)")
	cmd.Flags().Int("port", 8080, "Dev server port")
	cmd.Flags().String("host", "127.0.0.1", "Dev server host")
	cmd.Flags().Duration("timeout", 30*time.Second, "One-shot deadline, including app startup")

	return cmd
}

func runRun(cmd *cobra.Command, args []string) error {
	dir := "."
	if len(args) == 1 {
		dir = args[0]
	}
	if info, err := os.Stat(dir); err != nil {
		return exitError(exitFileNotFound, "project directory not found: %s", dir)
	} else if !info.IsDir() {
		return exitError(exitValidation, "%s is not a directory", dir)
	}

	toolName, _ := cmd.Flags().GetString("tool")
	argFlags, _ := cmd.Flags().GetStringArray("arg")
	port, _ := cmd.Flags().GetInt("port")
	host, _ := cmd.Flags().GetString("host")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	if toolName == "" {
		if len(argFlags) > 0 {
			return exitError(exitInputParse, "--arg requires --tool")
		}
		return serveApp(cmd, dir, host, port)
	}
	return callOnce(cmd, dir, host, port, toolName, argFlags, timeout)
}

// serveApp runs the app's dev server in the foreground until the
// process is interrupted or the app exits.
func serveApp(cmd *cobra.Command, dir, host string, port int) error {
	ctx := cmd.Context()
	serve := appServeCommand(ctx, dir, host, port)
	serve.Stdout = cmd.OutOrStdout()
	serve.Stderr = cmd.ErrOrStderr()

	if err := serve.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return exitError(exitRuntime, "app exited: %v", err)
	}
	return nil
}

// callOnce starts the app's dev server in the background, waits for it
// to become healthy, performs a single tool call, prints the response
// envelope, and shuts the app down.
func callOnce(cmd *cobra.Command, dir, host string, port int, toolName string, argFlags []string, timeout time.Duration) error {
	callArgs, err := parseArgPairs(argFlags)
	if err != nil {
		return exitError(exitInputParse, "%v", err)
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
	defer cancel()

	serve := appServeCommand(ctx, dir, host, port)
	serve.Stderr = cmd.ErrOrStderr()
	if err := serve.Start(); err != nil {
		return exitError(exitRuntime, "starting app: %v", err)
	}
	defer func() {
		cancel()
		_ = serve.Wait()
	}()

	baseURL := fmt.Sprintf("http://%s:%d", host, port)
	client := &http.Client{}

	if err := waitForHealth(ctx, client, baseURL, healthPollInterval); err != nil {
		return exitError(exitTimeout, "app did not become healthy within %s", timeout)
	}

	resp, err := callTool(ctx, client, baseURL, wire.ToolRequest{ToolName: toolName, Args: callArgs})
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return exitError(exitTimeout, "tool call timed out after %s", timeout)
		}
		return exitError(exitRuntime, "calling tool: %v", err)
	}

	out, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		return exitError(exitRuntime, "marshaling response envelope: %v", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))

	if resp.Failed() {
		return exitError(exitRuntime, "tool %s failed: %s", toolName, resp.Error)
	}
	return nil
}

// appServeCommand prepares the subprocess that runs the app's own
// serve verb through the Go toolchain. Cancellation asks the app to
// shut down cleanly before falling back to a hard kill.
func appServeCommand(ctx context.Context, dir, host string, port int) *exec.Cmd {
	serve := exec.CommandContext(ctx, "go", "run", ".",
		"serve", "--host", host, "--port", strconv.Itoa(port))
	serve.Dir = dir
	serve.Cancel = func() error {
		return serve.Process.Signal(os.Interrupt)
	}
	serve.WaitDelay = 5 * time.Second
	return serve
}

// waitForHealth polls the dev server health endpoint until it answers
// or ctx expires.
func waitForHealth(ctx context.Context, client *http.Client, baseURL string, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/health", nil)
		if err != nil {
			return err
		}
		resp, err := client.Do(req)
		if err == nil {
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return nil
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// callTool posts one request envelope to the dev server and decodes
// the response envelope. Tool failures ride inside the envelope; an
// error return means the transport itself failed.
func callTool(ctx context.Context, client *http.Client, baseURL string, call wire.ToolRequest) (wire.ToolResponse, error) {
	body, err := json.Marshal(call)
	if err != nil {
		return wire.ToolResponse{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, baseURL+"/api/tools/call", bytes.NewReader(body))
	if err != nil {
		return wire.ToolResponse{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return wire.ToolResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return wire.ToolResponse{}, fmt.Errorf("dev server returned %s: %s", resp.Status, strings.TrimSpace(string(detail)))
	}

	var out wire.ToolResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return wire.ToolResponse{}, fmt.Errorf("decoding response envelope: %w", err)
	}
	return out, nil
}

// parseArgPairs splits repeated name=value flags into the string args
// of a tool call.
func parseArgPairs(pairs []string) (map[string]string, error) {
	if len(pairs) == 0 {
		return nil, nil
	}
	args := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("argument %q is not name=value", pair)
		}
		args[name] = value
	}
	return args, nil
}
