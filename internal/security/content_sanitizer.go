// Package security はアプリケーションのセキュリティ機能を提供する。
//
// DescriptionSanitizer は求人サイトから貼り付けられた職務内容のHTMLをサニタイズする。
// bluemondayの許可リストベースのポリシーで、見出しや箇条書きなど
// 職務内容の表示に必要なタグのみを残す。
package security

import (
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

// Sanitizer は応募記録に保存する前のHTMLサニタイズ機能のインターフェース。
type Sanitizer interface {
	// Sanitize はHTMLをサニタイズして安全なHTMLを返す。
	// 同一入力に対して常に同一出力を返す。
	Sanitize(rawHTML string) string
}

// DescriptionSanitizer はSanitizerの実装。
// bluemondayのポリシーはスレッドセーフなため、1つのインスタンスを共有できる。
type DescriptionSanitizer struct {
	policy *bluemonday.Policy
}

// NewDescriptionSanitizer はDescriptionSanitizerを生成する。
// ポリシーの内容:
//   - 許可タグ: p, br, ul, ol, li, strong, em, b, i, h3, h4, blockquote, a
//   - aタグ: httpsとmailtoのみ許可し、target="_blank" と rel="noopener noreferrer" を付与
//   - img, script, iframe, style, フォーム要素および全てのon*属性は除去
func NewDescriptionSanitizer() *DescriptionSanitizer {
	p := bluemonday.NewPolicy()

	p.AllowElements(
		"p", "br", "ul", "ol", "li",
		"strong", "em", "b", "i",
		"h3", "h4", "blockquote",
	)

	p.AllowAttrs("href").OnElements("a")
	p.AllowURLSchemes("https", "mailto")
	p.AllowRelativeURLs(false)
	p.AddTargetBlankToFullyQualifiedLinks(true)
	p.RequireNoReferrerOnLinks(true)

	return &DescriptionSanitizer{policy: p}
}

// Sanitize は職務内容をサニタイズし、前後の空白を除去して返す。
func (s *DescriptionSanitizer) Sanitize(rawHTML string) string {
	if strings.TrimSpace(rawHTML) == "" {
		return ""
	}
	return strings.TrimSpace(s.policy.Sanitize(rawHTML))
}

var _ Sanitizer = (*DescriptionSanitizer)(nil)
