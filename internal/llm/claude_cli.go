package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ClaudeCLI runs `claude -p` as a subprocess, for machines where the CLI
// is logged in but no API key is configured.
type ClaudeCLI struct {
	bin     string
	opts    Options
	timeout time.Duration
}

// NewClaudeCLI creates a client that invokes the claude binary on PATH.
func NewClaudeCLI(opts Options) *ClaudeCLI {
	return &ClaudeCLI{bin: "claude", opts: opts, timeout: providerTimeout}
}

// cliResult is the subset of `--output-format json` that we read.
type cliResult struct {
	Result  string `json:"result"`
	IsError bool   `json:"is_error"`
	Usage   struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// Complete pipes the prompt to the CLI on stdin. Output that is not the
// JSON envelope is returned as plain text.
func (c *ClaudeCLI) Complete(ctx context.Context, prompt string) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, c.bin, "-p", "--output-format", "json", "--model", c.opts.Model, "--max-turns", "1")
	cmd.Stdin = strings.NewReader(prompt)
	cmd.Env = subprocessEnv(os.Environ())

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("claude cli: %w (stderr: %s)", err, strings.TrimSpace(stderr.String()))
	}

	var res cliResult
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		return &Response{Content: strings.TrimSpace(stdout.String()), Provider: "claude-cli"}, nil
	}
	if res.IsError {
		return nil, fmt.Errorf("claude cli: %s", res.Result)
	}
	return &Response{
		Content:    strings.TrimSpace(res.Result),
		Provider:   "claude-cli",
		TokensUsed: res.Usage.InputTokens + res.Usage.OutputTokens,
	}, nil
}

// subprocessEnv drops the CLAUDE* session variables so the child CLI
// starts a fresh session instead of attaching to the caller's.
func subprocessEnv(env []string) []string {
	out := make([]string, 0, len(env))
	for _, e := range env {
		if !strings.HasPrefix(e, "CLAUDE") {
			out = append(out, e)
		}
	}
	return out
}
