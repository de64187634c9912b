// Package session はサインイン中のユーザーごとにメモリ上の状態を管理する。
// お気に入り、プロフィール、カタログのスナップショットを保持し、
// サインアウト時には破棄する。
package session

// Favorites は追加順を保持する大学IDの集合。
// 並行アクセスの保護は呼び出し側（State）が行う。
type Favorites struct {
	ids []string
	set map[string]struct{}
}

// NewFavorites はFavoritesを生成する。重複したIDは最初の1件のみ保持する。
func NewFavorites(ids ...string) *Favorites {
	f := &Favorites{
		ids: make([]string, 0, len(ids)),
		set: make(map[string]struct{}, len(ids)),
	}
	for _, id := range ids {
		f.Add(id)
	}
	return f
}

// Add はIDを末尾に追加する。既に含まれている場合は何もせずfalseを返す。
func (f *Favorites) Add(id string) bool {
	if id == "" {
		return false
	}
	if _, ok := f.set[id]; ok {
		return false
	}
	f.set[id] = struct{}{}
	f.ids = append(f.ids, id)
	return true
}

// Contains はIDが含まれているかどうかを返す。
func (f *Favorites) Contains(id string) bool {
	_, ok := f.set[id]
	return ok
}

// IDs は追加順のIDのコピーを返す。
func (f *Favorites) IDs() []string {
	out := make([]string, len(f.ids))
	copy(out, f.ids)
	return out
}

// Len は要素数を返す。
func (f *Favorites) Len() int {
	return len(f.ids)
}
