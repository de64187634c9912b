// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// University はカタログに載る大学の1レコードを表す。
// シード処理でのみ作成・更新され、アプリケーションからは読み取り専用。
type University struct {
	ID        string
	Name      string
	Tags      []string
	PhotoURL  string
	City      string
	State     string
	Country   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasBlankPhoto は写真URLが未設定（空白のみを含む）かどうかを返す。
func (u *University) HasBlankPhoto() bool {
	return strings.TrimSpace(u.PhotoURL) == ""
}

// NormalizeTags はタグの前後空白を除去し、空文字と重複を取り除く。
// 最初に現れた順序を維持する。
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]struct{}, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// SplitTags はカンマ区切りのタグ文字列をスライスに変換する。
// 例: "public, research,urban" → ["public", "research", "urban"]
func SplitTags(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return []string{}
	}
	return NormalizeTags(strings.Split(raw, ","))
}
