package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/uniswipe/internal/identity"
	"github.com/hitoshi/uniswipe/internal/model"
)

// ErrTornDown はハイドレート中にセッションが破棄された場合に返される。
var ErrTornDown = errors.New("session was torn down during hydration")

// UserFinder はユーザーの検索に必要なインターフェース。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// VisitedLister はお気に入りIDの取得に必要なインターフェース。
type VisitedLister interface {
	ListVisited(ctx context.Context, userID string) ([]string, error)
}

// CatalogLoader はカタログの読み込みに必要なインターフェース。
type CatalogLoader interface {
	Load(ctx context.Context) ([]*model.University, error)
}

// ManagerConfig はManagerの設定を保持する。
type ManagerConfig struct {
	IdleTTL         time.Duration // 最終アクセスからこの時間を超えた状態を破棄する
	CleanupInterval time.Duration // 破棄処理の実行間隔
	HydrateTimeout  time.Duration // 認証通知を受けてからのハイドレートのタイムアウト
}

// DefaultManagerConfig はデフォルトの設定を返す。
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		IdleTTL:         24 * time.Hour,
		CleanupInterval: 5 * time.Minute,
		HydrateTimeout:  5 * time.Second,
	}
}

// Manager はセッションIDをキーにStateを管理するプロセス全体のレジストリ。
// identity.Broadcasterを購読し、認証済みでハイドレート、未認証で破棄する。
type Manager struct {
	users   UserFinder
	visited VisitedLister
	catalog CatalogLoader
	config  ManagerConfig

	mu       sync.Mutex
	states   map[string]*State
	tornDown map[string]time.Time // Teardown済みのセッションID。IdleTTL経過後にevictIdleで削除

	sub      *identity.Subscription
	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewManager はManagerを生成し、バックグラウンドで放置された状態の破棄を開始する。
// catalogはnilでもよい。その場合カタログはGET /api/universities時にのみ設定される。
func NewManager(users UserFinder, visited VisitedLister, catalog CatalogLoader, config ManagerConfig) *Manager {
	defaults := DefaultManagerConfig()
	if config.IdleTTL <= 0 {
		config.IdleTTL = defaults.IdleTTL
	}
	if config.CleanupInterval <= 0 {
		config.CleanupInterval = defaults.CleanupInterval
	}
	if config.HydrateTimeout <= 0 {
		config.HydrateTimeout = defaults.HydrateTimeout
	}

	m := &Manager{
		users:   users,
		visited: visited,
		catalog: catalog,
		config:  config,
		states:   make(map[string]*State),
		tornDown: make(map[string]time.Time),
		stopCh:   make(chan struct{}),
	}

	go m.cleanupLoop()

	return m
}

// Attach は認証状態の変化を購読する。
func (m *Manager) Attach(b *identity.Broadcaster) {
	m.sub = b.Subscribe(m.handleChange)
}

// Stop は購読を解除し、バックグラウンド処理を停止する。複数回呼び出しても安全。
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		m.sub.Close()
		close(m.stopCh)
	})
}

func (m *Manager) handleChange(change identity.Change) {
	switch change.State {
	case identity.Authenticated:
		if change.User == nil {
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), m.config.HydrateTimeout)
		defer cancel()
		if _, err := m.hydrate(ctx, change.SessionID, *change.User); err != nil {
			slog.Warn("failed to hydrate session state",
				slog.String("user_id", change.User.ID),
				slog.String("error", err.Error()),
			)
		}
	case identity.Unauthenticated:
		m.Teardown(change.SessionID)
	}
}

// Ensure はセッションの状態を返す。未ハイドレートの場合はバックエンドから読み込む。
// プロセス再起動後の最初のリクエストで使用される。
func (m *Manager) Ensure(ctx context.Context, sessionID, userID string) (*State, error) {
	if st := m.lookup(sessionID); st != nil && st.isHydrated() {
		st.touch(time.Now())
		return st, nil
	}

	user, err := m.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return nil, model.NewUserNotFoundError()
	}
	return m.hydrate(ctx, sessionID, *user)
}

// hydrate はユーザーのお気に入りとカタログを読み込んで状態を構築する。
// Teardown済みのセッション、または読み込み中にTeardownされた場合は状態を登録せずErrTornDownを返す。
func (m *Manager) hydrate(ctx context.Context, sessionID string, user model.User) (*State, error) {
	m.mu.Lock()
	if _, dead := m.tornDown[sessionID]; dead {
		m.mu.Unlock()
		return nil, ErrTornDown
	}
	st, ok := m.states[sessionID]
	if !ok {
		st = newState()
		m.states[sessionID] = st
	}
	m.mu.Unlock()

	visited, err := m.visited.ListVisited(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list visited universities: %w", err)
	}

	if m.catalog != nil && !st.CatalogLoaded() {
		universities, err := m.catalog.Load(ctx)
		if err != nil {
			// カタログは一覧取得時に再読み込みされる
			slog.Debug("catalog snapshot not loaded during hydration",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		} else {
			st.setCatalog(universities)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.states[sessionID] != st {
		return nil, ErrTornDown
	}
	st.fill(user, visited)
	st.touch(time.Now())

	slog.Debug("session state hydrated",
		slog.String("user_id", user.ID),
		slog.Int("favorites", len(visited)),
	)
	return st, nil
}

// Teardown はセッションの状態を破棄する。
// 以後そのセッションIDでのハイドレートは行わない。
func (m *Manager) Teardown(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.states, sessionID)
	m.tornDown[sessionID] = time.Now()
}

// Get はセッションの状態を返す。存在しない場合はnilを返す。
func (m *Manager) Get(sessionID string) *State {
	st := m.lookup(sessionID)
	if st != nil {
		st.touch(time.Now())
	}
	return st
}

// Favorites はセッションのお気に入りIDを追加順で返す。
// 状態が存在しない場合（サインアウト後を含む）はnilを返す。
func (m *Manager) Favorites(sessionID string) []string {
	st := m.lookup(sessionID)
	if st == nil {
		return nil
	}
	return st.FavoriteIDs()
}

// MirrorFavorite はバックエンドに保存済みのお気に入りをセッションへ反映する。
// 状態が存在しない場合は何もしない。
func (m *Manager) MirrorFavorite(sessionID, universityID string) {
	if st := m.lookup(sessionID); st != nil {
		st.AddFavorite(universityID)
	}
}

// SetCatalog はセッションのカタログスナップショットを置き換える。
func (m *Manager) SetCatalog(sessionID string, universities []*model.University) {
	if st := m.lookup(sessionID); st != nil {
		st.setCatalog(universities)
	}
}

// Len は管理中の状態数を返す。
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.states)
}

func (m *Manager) lookup(sessionID string) *State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.states[sessionID]
}

func (m *Manager) cleanupLoop() {
	ticker := time.NewTicker(m.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evictIdle(time.Now())
		case <-m.stopCh:
			return
		}
	}
}

// evictIdle は最終アクセスからIdleTTLを超えた状態と、古いTeardownの記録を破棄する。
func (m *Manager) evictIdle(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	evicted := 0
	for id, st := range m.states {
		if st.idleSince(now) > m.config.IdleTTL {
			delete(m.states, id)
			evicted++
		}
	}
	for id, at := range m.tornDown {
		if now.Sub(at) > m.config.IdleTTL {
			delete(m.tornDown, id)
		}
	}
	return evicted
}
