// Package security はアプリケーションのセキュリティ機能を提供する。
//
// ProfileSanitizer は登録時に受け取るプロフィールの自由入力テキストからHTMLを除去する。
// 保存された値はダッシュボードやメール本文に表示されるため、マークアップは一切残さない。
package security

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// ProfileSanitizer はプロフィールテキストのサニタイズ機能のインターフェース。
type ProfileSanitizer interface {
	// Text はタグを除去し、前後の空白を取り除いたプレーンテキストを返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Text(s string) string

	// List は各要素にTextを適用し、空になった要素を取り除く。
	List(items []string) []string
}

// profileSanitizer はProfileSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなので共有して使う。
type profileSanitizer struct {
	policy *bluemonday.Policy
}

// maxSanitizeRounds はエスケープを戻した結果に再びタグが現れる入力に対する反復の上限。
const maxSanitizeRounds = 4

// NewProfileSanitizer はProfileSanitizerの新しいインスタンスを生成する。
// 全タグを除去するStrictPolicyを使用する。
func NewProfileSanitizer() ProfileSanitizer {
	return &profileSanitizer{policy: bluemonday.StrictPolicy()}
}

// Text はタグを除去したプレーンテキストを返す。
func (s *profileSanitizer) Text(in string) string {
	if in == "" {
		return ""
	}
	// StrictPolicyは & や < をエスケープするため、プレーンテキストとして保存できるよう戻す。
	// 戻した結果がタグになる場合（&lt;b&gt; など）は変化しなくなるまで繰り返す。
	out := in
	for i := 0; i < maxSanitizeRounds; i++ {
		next := html.UnescapeString(s.policy.Sanitize(out))
		if next == out {
			break
		}
		out = next
	}
	return strings.TrimSpace(out)
}

// List は各要素をサニタイズし、空要素を除いたスライスを返す。
func (s *profileSanitizer) List(items []string) []string {
	if len(items) == 0 {
		return nil
	}
	out := make([]string, 0, len(items))
	for _, item := range items {
		if v := s.Text(item); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
