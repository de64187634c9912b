package session

import (
	"sync"
	"time"

	"github.com/hitoshi/uniswipe/internal/model"
)

// State は1セッション分のメモリ上の状態。
type State struct {
	mu         sync.RWMutex
	user       model.User
	favorites  *Favorites
	catalog    []*model.University
	index      map[string]*model.University
	hydrated   bool
	lastAccess time.Time
}

func newState() *State {
	return &State{
		favorites:  NewFavorites(),
		lastAccess: time.Now(),
	}
}

// User はセッションのユーザーを返す。
func (s *State) User() model.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// FavoriteIDs はお気に入りの大学IDを追加順で返す。
func (s *State) FavoriteIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.favorites.IDs()
}

// HasFavorite は大学IDがお気に入りに含まれているかどうかを返す。
func (s *State) HasFavorite(id string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.favorites.Contains(id)
}

// AddFavorite はお気に入りに大学IDを追加する。
func (s *State) AddFavorite(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.favorites.Add(id)
}

// Catalog はカタログのスナップショットを返す。未読み込みの場合はnil。
func (s *State) Catalog() []*model.University {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.catalog == nil {
		return nil
	}
	out := make([]*model.University, len(s.catalog))
	copy(out, s.catalog)
	return out
}

// CatalogLoaded はカタログのスナップショットを保持しているかどうかを返す。
func (s *State) CatalogLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.catalog != nil
}

// LookupUniversity はスナップショットから大学を検索する。
func (s *State) LookupUniversity(id string) (*model.University, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.index[id]
	return u, ok
}

func (s *State) setCatalog(universities []*model.University) {
	index := make(map[string]*model.University, len(universities))
	for _, u := range universities {
		index[u.ID] = u
	}
	snapshot := make([]*model.University, len(universities))
	copy(snapshot, universities)

	s.mu.Lock()
	s.catalog = snapshot
	s.index = index
	s.mu.Unlock()
}

func (s *State) fill(user model.User, visited []string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = user
	// ハイドレート中にミラーされたIDは保存済みIDの後ろに残す
	merged := NewFavorites(visited...)
	for _, id := range s.favorites.ids {
		merged.Add(id)
	}
	s.favorites = merged
	s.hydrated = true
}

func (s *State) touch(now time.Time) {
	s.mu.Lock()
	s.lastAccess = now
	s.mu.Unlock()
}

func (s *State) idleSince(now time.Time) time.Duration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return now.Sub(s.lastAccess)
}

func (s *State) isHydrated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.hydrated
}
