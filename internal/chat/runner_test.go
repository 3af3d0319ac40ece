package chat

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hitoshi/chatrelay/internal/model"
)

func TestCLIRunner_Run_ReturnsTrimmedStdout(t *testing.T) {
	// echoは "-p <prompt>" をそのまま標準出力に書く
	r := NewCLIRunner("echo", 10*time.Second)

	out, err := r.Run(context.Background(), "hello", nil)
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if out != "-p hello" {
		t.Errorf("output = %q, want %q", out, "-p hello")
	}
}

func TestCLIRunner_Run_CommandNotFound_ReturnsClaudeUnavailable(t *testing.T) {
	r := NewCLIRunner("definitely-no-such-command-xyz", 10*time.Second)

	_, err := r.Run(context.Background(), "hello", nil)
	if err == nil {
		t.Fatal("expected error for missing command")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeClaudeUnavailable {
		t.Errorf("error = %v, want CLAUDE_UNAVAILABLE", err)
	}
}

func TestCLIRunner_Run_Timeout_ReturnsClaudeTimeout(t *testing.T) {
	script := filepath.Join(t.TempDir(), "slow.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\nsleep 5\n"), 0o755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	r := NewCLIRunner(script, 100*time.Millisecond)

	_, err := r.Run(context.Background(), "hello", nil)
	if err == nil {
		t.Fatal("expected timeout error")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeClaudeTimeout {
		t.Errorf("error = %v, want CLAUDE_TIMEOUT", err)
	}
}

func TestCLIRunner_Run_CommandFails_ReturnsClaudeFailedWithStderr(t *testing.T) {
	// false は何も出力せず終了コード1で失敗する
	r := NewCLIRunner("false", 10*time.Second)

	_, err := r.Run(context.Background(), "hello", nil)
	if err == nil {
		t.Fatal("expected error for failing command")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeClaudeFailed {
		t.Errorf("error = %v, want CLAUDE_FAILED", err)
	}
}

func TestCLIRunner_Run_PassesExtraEnvToChildProcess(t *testing.T) {
	script := filepath.Join(t.TempDir(), "env.sh")
	if err := os.WriteFile(script, []byte("#!/bin/sh\necho \"$ANTHROPIC_API_KEY\"\n"), 0o755); err != nil {
		t.Fatalf("failed to write script: %v", err)
	}

	r := NewCLIRunner(script, 10*time.Second)

	out, err := r.Run(context.Background(), "hello", []string{"ANTHROPIC_API_KEY=sk-ant-api03-test"})
	if err != nil {
		t.Fatalf("Run() error: %v", err)
	}
	if out != "sk-ant-api03-test" {
		t.Errorf("child process env = %q, want the injected credential", out)
	}
}

func TestCLIRunner_Run_ContextCancelled(t *testing.T) {
	r := NewCLIRunner("sleep", 10*time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := r.Run(ctx, "5", nil)
	if err == nil {
		t.Fatal("expected error for cancelled context")
	}
}
