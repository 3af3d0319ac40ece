// Package anthropic はAnthropicクレデンシャルの分類と検証を提供する。
// 最小限のMessages APIリクエスト（プローブ）でクレデンシャルの有効性を確認し、
// クレデンシャルから決定的に導出した外部IDを返す。
package anthropic

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

// CredentialKind はベアラークレデンシャルの種別を表す。
type CredentialKind int

const (
	// KindUnknown はプレフィックスから種別を判定できないクレデンシャルを示す。
	KindUnknown CredentialKind = iota
	// KindAPIKey は標準のAPIキー（sk-ant-...）を示す。
	KindAPIKey
	// KindOAuth はOAuthトークン（ant-oa-... / sk-ant-oa...）を示す。
	KindOAuth
)

// String はログ出力用の種別名を返す。
func (k CredentialKind) String() string {
	switch k {
	case KindAPIKey:
		return "api_key"
	case KindOAuth:
		return "oauth"
	default:
		return "unknown"
	}
}

// ClassifyCredential はクレデンシャル文字列をプレフィックスで分類する。
// OAuthプレフィックスはAPIキープレフィックスを内包するため、OAuth判定を先に行う。
func ClassifyCredential(bearer string) CredentialKind {
	switch {
	case strings.HasPrefix(bearer, "ant-oa-") || strings.HasPrefix(bearer, "sk-ant-oa"):
		return KindOAuth
	case strings.HasPrefix(bearer, "sk-ant-"):
		return KindAPIKey
	default:
		return KindUnknown
	}
}

// ExternalIdentity はクレデンシャル検証で得られた外部アイデンティティを表す。
// EmailとNameはプローブから取得できないため常に空。
type ExternalIdentity struct {
	ID    string
	Email string
	Name  string
}

// DeriveExternalID はクレデンシャルのSHA-256ハッシュから外部IDを決定的に導出する。
// 種別ごとに名前空間を分離し、種別をまたいだID衝突を防ぐ。
func DeriveExternalID(bearer string, kind CredentialKind) string {
	sum := sha256.Sum256([]byte(bearer))
	digest := hex.EncodeToString(sum[:])

	if kind == KindOAuth {
		return "oauth_" + digest[:28]
	}
	return digest[:32]
}
