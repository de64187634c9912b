// Package identity は認証状態の変化を購読者へ配信する仕組みを提供する。
package identity

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/uniswipe/internal/model"
)

// State はセッションの認証状態を表す。
type State string

const (
	// Unauthenticated は未認証状態。
	Unauthenticated State = "unauthenticated"
	// Authenticating は認証処理中の状態。
	Authenticating State = "authenticating"
	// Authenticated は認証済み状態。
	Authenticated State = "authenticated"
)

// Change は認証状態の変化を表す。
// Userは認証済みの場合のみ設定される。
type Change struct {
	SessionID string
	State     State
	User      *model.User
}

// Subscription はBroadcasterへの購読を表す。
type Subscription struct {
	b    *Broadcaster
	id   uint64
	once sync.Once
}

// Close は購読を解除する。複数回呼び出しても安全。
func (s *Subscription) Close() {
	if s == nil {
		return
	}
	s.once.Do(func() {
		s.b.remove(s.id)
	})
}

type subscriber struct {
	id uint64
	fn func(Change)
}

// Broadcaster は認証状態の変化を購読者に同期配信する。
type Broadcaster struct {
	mu     sync.Mutex
	nextID uint64
	subs   []subscriber
}

// NewBroadcaster はBroadcasterを生成する。
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{}
}

// Subscribe はコールバックを登録する。
// 戻り値のSubscriptionをCloseするまで、Publishされた変化が購読順に届く。
func (b *Broadcaster) Subscribe(fn func(Change)) *Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subs = append(b.subs, subscriber{id: b.nextID, fn: fn})
	return &Subscription{b: b, id: b.nextID}
}

// Publish は全購読者へ変化を配信する。
// 購読者一覧をコピーしてからロックを解放し、コールバックを呼び出す。
// コールバック内のpanicは回復してログに記録し、残りの購読者への配信を続ける。
func (b *Broadcaster) Publish(change Change) {
	b.mu.Lock()
	subs := make([]subscriber, len(b.subs))
	copy(subs, b.subs)
	b.mu.Unlock()

	for _, s := range subs {
		deliver(s.fn, change)
	}
}

// Len は現在の購読者数を返す。
func (b *Broadcaster) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

func (b *Broadcaster) remove(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, s := range b.subs {
		if s.id == id {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			return
		}
	}
}

func deliver(fn func(Change), change Change) {
	defer func() {
		if rec := recover(); rec != nil {
			slog.Error("identity subscriber panicked",
				slog.String("session_id", change.SessionID),
				slog.String("state", string(change.State)),
				slog.String("panic", fmt.Sprint(rec)),
			)
		}
	}()
	fn(change)
}
