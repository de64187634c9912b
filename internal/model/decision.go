// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Direction はスワイプの方向（判定結果）を表す。
type Direction string

const (
	// DirectionLeft は否定的な判定（左スワイプ）。
	DirectionLeft Direction = "left"
	// DirectionRight は肯定的な判定（右スワイプ）。お気に入りに追加される。
	DirectionRight Direction = "right"
)

// ParseDirection は文字列をDirectionに変換する。
// "left"/"right" に加えて "negative"/"positive" も受け付ける。
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "left", "negative":
		return DirectionLeft, true
	case "right", "positive":
		return DirectionRight, true
	default:
		return "", false
	}
}

// IsPositive は肯定的な判定かどうかを返す。
func (d Direction) IsPositive() bool {
	return d == DirectionRight
}

// SwipeEvent はスワイプ1回分の監査レコード。
// 追記のみで、作成後に更新・参照されることはない。
type SwipeEvent struct {
	ID           string
	UserID       string
	UniversityID string
	Direction    Direction
	CreatedAt    time.Time
}

const (
	// RatingMin は評価軸の最小値。
	RatingMin = 1
	// RatingMax は評価軸の最大値。
	RatingMax = 5
	// RatingDefault は未評価の軸に使う値。
	RatingDefault = 3
)

// Rating は大学に対する4軸の評価を表す。各軸は1〜5の整数。
type Rating struct {
	Vibe       int
	Academics  int
	Location   int
	GutFeeling int
}

// DefaultRating は全軸が既定値3の評価を返す。
func DefaultRating() Rating {
	return Rating{
		Vibe:       RatingDefault,
		Academics:  RatingDefault,
		Location:   RatingDefault,
		GutFeeling: RatingDefault,
	}
}

// Valid は全軸が1〜5の範囲内かどうかを返す。
func (r Rating) Valid() bool {
	for _, v := range []int{r.Vibe, r.Academics, r.Location, r.GutFeeling} {
		if v < RatingMin || v > RatingMax {
			return false
		}
	}
	return true
}

// WithDefaults は未設定（0）の軸を既定値3で埋めた評価を返す。
func (r Rating) WithDefaults() Rating {
	if r.Vibe == 0 {
		r.Vibe = RatingDefault
	}
	if r.Academics == 0 {
		r.Academics = RatingDefault
	}
	if r.Location == 0 {
		r.Location = RatingDefault
	}
	if r.GutFeeling == 0 {
		r.GutFeeling = RatingDefault
	}
	return r
}
