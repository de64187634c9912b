package security

import (
	"html"
	"strings"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"
)

// MaxNoteRunes はメモの最大文字数（rune数）。
const MaxNoteRunes = 2000

// NoteSanitizer は比較画面のメモをプレーンテキストに整える。
type NoteSanitizer interface {
	// Sanitize はHTMLタグを除去し、最大MaxNoteRunes文字に切り詰める。
	// 同一入力に対して常に同一出力を返す。
	Sanitize(raw string) string
}

type noteSanitizer struct {
	policy *bluemonday.Policy
}

// NewNoteSanitizer はbluemondayのStrictPolicyを使うNoteSanitizerを生成する。
func NewNoteSanitizer() *noteSanitizer {
	return &noteSanitizer{policy: bluemonday.StrictPolicy()}
}

// Sanitize はタグを除去したうえでHTMLエスケープを元に戻す。
// メモはJSONでのみ返され、表示側でエスケープされる。
func (s *noteSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	text := html.UnescapeString(s.policy.Sanitize(raw))
	text = strings.TrimSpace(text)
	return truncateRunes(text, MaxNoteRunes)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

// compile-time interface check
var _ NoteSanitizer = (*noteSanitizer)(nil)
