package security

import (
	"strings"
	"testing"
)

// TestSanitize_AllowedTags は許可タグが正しく通過することを検証する。
func TestSanitize_AllowedTags(t *testing.T) {
	sanitizer := NewDescriptionSanitizer()

	tests := []struct {
		name         string
		input        string
		wantContains []string
	}{
		{
			name:         "pタグが許可される",
			input:        "<p>バックエンド開発</p>",
			wantContains: []string{"<p>バックエンド開発</p>"},
		},
		{
			name:         "箇条書きが許可される",
			input:        "<ul><li>Go</li><li>PostgreSQL</li></ul>",
			wantContains: []string{"<ul>", "<li>Go</li>", "<li>PostgreSQL</li>", "</ul>"},
		},
		{
			name:         "見出しが許可される",
			input:        "<h3>必須スキル</h3>",
			wantContains: []string{"<h3>必須スキル</h3>"},
		},
		{
			name:         "強調が許可される",
			input:        "<b>歓迎</b><strong>必須</strong>",
			wantContains: []string{"<b>歓迎</b>", "<strong>必須</strong>"},
		},
		{
			name:         "httpsリンクが許可される",
			input:        `<a href="https://jobs.example.com/123">求人ページ</a>`,
			wantContains: []string{"https://jobs.example.com/123", "求人ページ"},
		},
		{
			name:         "mailtoリンクが許可される",
			input:        `<a href="mailto:hr@example.com">採用担当</a>`,
			wantContains: []string{"mailto:hr@example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, expected to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_ForbiddenContent は禁止タグと属性が除去されることを検証する。
func TestSanitize_ForbiddenContent(t *testing.T) {
	sanitizer := NewDescriptionSanitizer()

	tests := []struct {
		name         string
		input        string
		wantAbsent   []string
		wantContains []string
	}{
		{
			name:         "scriptタグが除去される",
			input:        `<p>募集要項</p><script>alert('xss')</script>`,
			wantAbsent:   []string{"<script", "alert"},
			wantContains: []string{"募集要項"},
		},
		{
			name:       "imgタグが除去される",
			input:      `<img src="https://example.com/logo.png">`,
			wantAbsent: []string{"<img", "logo.png"},
		},
		{
			name:       "iframeタグが除去される",
			input:      `<iframe src="https://evil.com"></iframe>`,
			wantAbsent: []string{"<iframe", "evil.com"},
		},
		{
			name:       "フォーム要素が除去される",
			input:      `<form action="https://evil.com"><input type="text"></form>`,
			wantAbsent: []string{"<form", "<input"},
		},
		{
			name:         "on*属性が除去される",
			input:        `<p onclick="steal()">職務内容</p>`,
			wantAbsent:   []string{"onclick", "steal"},
			wantContains: []string{"職務内容"},
		},
		{
			name:       "javascriptスキームのリンクが除去される",
			input:      `<a href="javascript:alert(1)">クリック</a>`,
			wantAbsent: []string{"javascript:"},
		},
		{
			name:       "httpリンクが除去される",
			input:      `<a href="http://example.com">リンク</a>`,
			wantAbsent: []string{"http://example.com"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := sanitizer.Sanitize(tt.input)
			for _, absent := range tt.wantAbsent {
				if strings.Contains(got, absent) {
					t.Errorf("Sanitize(%q) = %q, should NOT contain %q", tt.input, got, absent)
				}
			}
			for _, want := range tt.wantContains {
				if !strings.Contains(got, want) {
					t.Errorf("Sanitize(%q) = %q, expected to contain %q", tt.input, got, want)
				}
			}
		})
	}
}

// TestSanitize_AnchorAttributes はaタグにtarget="_blank"とrelが付与されることを検証する。
func TestSanitize_AnchorAttributes(t *testing.T) {
	sanitizer := NewDescriptionSanitizer()

	got := sanitizer.Sanitize(`<a href="https://example.com" target="_self">リンク</a>`)
	for _, want := range []string{`target="_blank"`, "noopener", "noreferrer"} {
		if !strings.Contains(got, want) {
			t.Errorf("Sanitize() = %q, expected to contain %q", got, want)
		}
	}
	if strings.Contains(got, `target="_self"`) {
		t.Errorf("Sanitize() = %q, should NOT contain target=\"_self\"", got)
	}
}

// TestSanitize_EmptyAndWhitespace は空入力と空白のみの入力を検証する。
func TestSanitize_EmptyAndWhitespace(t *testing.T) {
	sanitizer := NewDescriptionSanitizer()

	for _, input := range []string{"", "   \n\t"} {
		if got := sanitizer.Sanitize(input); got != "" {
			t.Errorf("Sanitize(%q) = %q, expected empty string", input, got)
		}
	}
}

// TestSanitize_PlainText はプレーンテキストがそのまま通過することを検証する。
func TestSanitize_PlainText(t *testing.T) {
	sanitizer := NewDescriptionSanitizer()

	input := "Goでのバックエンド開発経験3年以上"
	if got := sanitizer.Sanitize(input); got != input {
		t.Errorf("Sanitize(%q) = %q, expected unchanged", input, got)
	}
}

// TestSanitize_Idempotent は二重サニタイズで結果が変わらないことを検証する。
func TestSanitize_Idempotent(t *testing.T) {
	sanitizer := NewDescriptionSanitizer()

	input := `<div><h3>業務内容</h3><p>API開発<strong>リード</strong></p><a href="https://example.com">詳細</a><script>x()</script></div>`

	first := sanitizer.Sanitize(input)
	second := sanitizer.Sanitize(first)
	if first != second {
		t.Errorf("二重サニタイズで結果が変わった: 1回目=%q, 2回目=%q", first, second)
	}
}
