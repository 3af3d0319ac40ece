// Package chat はClaude CLIによる応答生成と会話履歴の管理を提供する。
package chat

import (
	"bytes"
	"context"
	"errors"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/hitoshi/chatrelay/internal/model"
)

// Runner はプロンプトから応答テキストを生成するインターフェース。
// テストではモック実装に差し替える。
type Runner interface {
	// Run はプロンプトを実行し、応答テキストを返す。
	// extraEnvは子プロセスに追加で渡す環境変数（"KEY=VALUE"形式）。
	Run(ctx context.Context, prompt string, extraEnv []string) (string, error)
}

// CLIRunner はClaude CLIをprintモード（-p）で起動するRunner実装。
type CLIRunner struct {
	command string
	timeout time.Duration
}

// NewCLIRunner はCLIRunnerを生成する。
func NewCLIRunner(command string, timeout time.Duration) *CLIRunner {
	return &CLIRunner{
		command: command,
		timeout: timeout,
	}
}

// Run はClaude CLIを起動し、標準出力を応答として返す。
// タイムアウト・CLI未検出・実行失敗はそれぞれ対応するAPIErrorに変換する。
func (r *CLIRunner) Run(ctx context.Context, prompt string, extraEnv []string) (string, error) {
	runCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, r.command, "-p", prompt)
	cmd.Env = append(os.Environ(), extraEnv...)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if err != nil {
		if runCtx.Err() == context.DeadlineExceeded {
			return "", model.NewClaudeTimeoutError()
		}
		if errors.Is(err, exec.ErrNotFound) {
			return "", model.NewClaudeUnavailableError()
		}

		reason := strings.TrimSpace(stderr.String())
		if reason == "" {
			reason = strings.TrimSpace(stdout.String())
		}
		if reason == "" {
			reason = err.Error()
		}
		return "", model.NewClaudeFailedError(reason)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// compile-time interface check
var _ Runner = (*CLIRunner)(nil)
