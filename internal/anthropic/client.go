package anthropic

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"
)

const (
	// defaultBaseURL はAnthropic APIのベースURL。
	defaultBaseURL = "https://api.anthropic.com"
	// apiVersion はanthropic-versionヘッダーの値。
	apiVersion = "2023-06-01"
	// oauthBeta はOAuthトークン使用時に必須のanthropic-betaヘッダーの値。
	oauthBeta = "oauth-2025-04-20"

	// probeTimeout はプローブリクエスト1回あたりの上限時間。
	probeTimeout = 10 * time.Second

	// プローブに使用するモデル。最小コストで済むようmax_tokens=1で呼び出す。
	apiKeyProbeModel = "claude-3-haiku-20240307"
	oauthProbeModel  = "claude-sonnet-4-20250514"
)

// Client はAnthropic APIに対するクレデンシャル検証クライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	baseURL    string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientの新しいインスタンスを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		baseURL:    defaultBaseURL,
	}
}

// probeRequest はMessages APIへの最小プローブリクエストのボディ。
type probeRequest struct {
	Model     string         `json:"model"`
	MaxTokens int            `json:"max_tokens"`
	Messages  []probeMessage `json:"messages"`
}

// probeMessage はプローブリクエスト内の単一メッセージ。
type probeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ValidateCredential はベアラークレデンシャルをAnthropic APIで検証する。
// 有効な場合は外部アイデンティティを、無効な場合はnilを返す。
// プレフィックスで分類できないクレデンシャルはAPIキーとして先に検証し、
// 失敗した場合のみOAuthトークンとして再検証する（最大2回のプローブ）。
// リモートの曖昧な応答（429/5xx等）やネットワークエラーはすべて無効として扱う。
func (c *Client) ValidateCredential(ctx context.Context, bearer string) (*ExternalIdentity, error) {
	if bearer == "" {
		return nil, nil
	}

	switch ClassifyCredential(bearer) {
	case KindOAuth:
		return c.validateAs(ctx, bearer, KindOAuth)
	case KindAPIKey:
		return c.validateAs(ctx, bearer, KindAPIKey)
	default:
		identity, err := c.validateAs(ctx, bearer, KindAPIKey)
		if err != nil || identity != nil {
			return identity, err
		}
		return c.validateAs(ctx, bearer, KindOAuth)
	}
}

// validateAs は指定種別としてプローブを1回発行し、結果を判定する。
// HTTP 200のみを有効とみなす。それ以外のステータスとネットワークエラーは
// 無効（nil, nil）として扱い、このコンポーネントではリトライしない。
func (c *Client) validateAs(ctx context.Context, bearer string, kind CredentialKind) (*ExternalIdentity, error) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	req, err := c.newProbeRequest(probeCtx, bearer, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to build probe request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Warn("credential probe failed",
			slog.String("kind", kind.String()),
			slog.String("error", err.Error()),
		)
		return nil, nil
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		if resp.StatusCode != http.StatusUnauthorized {
			// レート制限やサーバーエラーでもフェイルクローズで無効扱いにする
			c.logger.Warn("credential probe returned non-auth status",
				slog.String("kind", kind.String()),
				slog.Int("http_status", resp.StatusCode),
			)
		}
		return nil, nil
	}

	return &ExternalIdentity{ID: DeriveExternalID(bearer, kind)}, nil
}

// newProbeRequest は種別に応じたヘッダーを持つプローブリクエストを構築する。
func (c *Client) newProbeRequest(ctx context.Context, bearer string, kind CredentialKind) (*http.Request, error) {
	model := apiKeyProbeModel
	if kind == KindOAuth {
		model = oauthProbeModel
	}

	body, err := json.Marshal(probeRequest{
		Model:     model,
		MaxTokens: 1,
		Messages:  []probeMessage{{Role: "user", Content: "hi"}},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal probe body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create probe request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("anthropic-version", apiVersion)

	if kind == KindOAuth {
		req.Header.Set("Authorization", "Bearer "+bearer)
		req.Header.Set("anthropic-beta", oauthBeta)
	} else {
		req.Header.Set("x-api-key", bearer)
	}

	return req, nil
}
