package identity

import (
	"fmt"
	"sync"
	"time"
)

// DefaultStateTTL は状態の保持期間のデフォルト値。セッションの有効期間と揃える。
const DefaultStateTTL = 24 * time.Hour

// validTransitions は認証状態の許可された遷移。
var validTransitions = map[State][]State{
	Unauthenticated: {Authenticating},
	Authenticating:  {Authenticated, Unauthenticated},
	Authenticated:   {Unauthenticated},
}

// CanTransition はfromからtoへの遷移が許可されているかを返す。
func CanTransition(from, to State) bool {
	for _, s := range validTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

type entry struct {
	state     State
	expiresAt time.Time
}

// Machine はセッションごとの認証状態を追跡する。
// 状態を持たないセッションと期限切れのセッションはUnauthenticatedとして扱う。
// 期限切れの記録はPruneExpiredで削除する。
type Machine struct {
	mu      sync.Mutex
	entries map[string]entry
	ttl     time.Duration
	now     func() time.Time
}

// NewMachine はMachineを生成する。ttlは遷移ごとに設定される保持期間で、0以下ならDefaultStateTTL。
func NewMachine(ttl time.Duration) *Machine {
	if ttl <= 0 {
		ttl = DefaultStateTTL
	}
	return &Machine{
		entries: make(map[string]entry),
		ttl:     ttl,
		now:     time.Now,
	}
}

// Current はセッションの現在の状態を返す。
func (m *Machine) Current(sessionID string) State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentLocked(sessionID)
}

func (m *Machine) currentLocked(sessionID string) State {
	e, ok := m.entries[sessionID]
	if !ok || !m.now().Before(e.expiresAt) {
		return Unauthenticated
	}
	return e.state
}

// Transition はセッションの状態を遷移させる。
// 許可されていない遷移の場合はエラーを返し、状態は変更しない。
func (m *Machine) Transition(sessionID string, to State) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	from := m.currentLocked(sessionID)
	if !CanTransition(from, to) {
		return fmt.Errorf("invalid identity transition for session %s: %s -> %s", sessionID, from, to)
	}

	if to == Unauthenticated {
		delete(m.entries, sessionID)
		return nil
	}
	m.entries[sessionID] = entry{state: to, expiresAt: m.now().Add(m.ttl)}
	return nil
}

// Restore は永続化されたセッションが有効であることを確認済みの場合に認証済みとして記録する。
// プロセス再起動後のように遷移の記録がないセッションで使う。記録がある場合は変更しない。
func (m *Machine) Restore(sessionID string, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.currentLocked(sessionID) != Unauthenticated || !m.now().Before(expiresAt) {
		return
	}
	m.entries[sessionID] = entry{state: Authenticated, expiresAt: expiresAt}
}

// PruneExpired はnow時点で期限切れの記録を削除し、削除件数を返す。
func (m *Machine) PruneExpired(now time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	pruned := 0
	for id, e := range m.entries {
		if !now.Before(e.expiresAt) {
			delete(m.entries, id)
			pruned++
		}
	}
	return pruned
}

// Len は記録中のセッション数を返す。
func (m *Machine) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}
