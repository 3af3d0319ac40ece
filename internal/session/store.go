// Package session はインメモリのセッションストアを提供する。
// セッションはプロセスメモリ上にのみ存在し、プロセス再起動で消失する。
// 水平スケールは設計上のスコープ外（単一プロセス前提）。
package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/hitoshi/chatrelay/internal/model"
)

// tokenBytes はセッショントークンの乱数長。
// base64url化して43文字のトークンになる。総当たりは現実的に不可能。
const tokenBytes = 32

// Store はトークンをキーとするインメモリセッションテーブル。
// 全操作は単一のミューテックスで直列化される。
// グローバル変数は持たず、生成したStoreを各リクエストパスへ注入して使う。
type Store struct {
	mu       sync.Mutex
	sessions map[string]*model.Session
	duration time.Duration

	// now はテストで時計を差し替えるためのフック。
	now func() time.Time
}

// NewStore は指定されたセッション有効期間のStoreを生成する。
func NewStore(duration time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*model.Session),
		duration: duration,
		now:      time.Now,
	}
}

// Create は新しいセッションを作成し、発行されたセッションを返す。
// 有効期限は作成時に確定し、以後延長されることはない。
func (s *Store) Create(userID, bearerCredential string) (*model.Session, error) {
	token, err := generateToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := &model.Session{
		Token:            token,
		UserID:           userID,
		BearerCredential: bearerCredential,
		CreatedAt:        now,
		ExpiresAt:        now.Add(s.duration),
	}
	s.sessions[token] = sess

	copied := *sess
	return &copied, nil
}

// Get は有効なセッションを返す。
// 存在しない場合はnil、期限切れの場合はエントリを削除してnilを返す（遅延削除）。
// 返り値はコピーであり、呼び出し側がストア内部の状態を共有することはない。
func (s *Store) Get(token string) *model.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.sessions[token]
	if !ok {
		return nil
	}

	if s.now().After(sess.ExpiresAt) {
		delete(s.sessions, token)
		return nil
	}

	copied := *sess
	return &copied
}

// Delete はセッションを無条件に削除し、存在していたかどうかを返す。
func (s *Store) Delete(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[token]; !ok {
		return false
	}
	delete(s.sessions, token)
	return true
}

// Sweep は期限切れの全セッションを削除し、削除件数を返す。
// 放置されたセッションによるメモリ増加の上限として定期的に呼び出す。
func (s *Store) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for token, sess := range s.sessions {
		if now.After(sess.ExpiresAt) {
			delete(s.sessions, token)
			removed++
		}
	}
	return removed
}

// Len は現在保持しているセッション数を返す（期限切れ含む）。
// メトリクスおよびテスト用。
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// generateToken は暗号的に安全なセッショントークンを生成する。
func generateToken() (string, error) {
	b := make([]byte, tokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
