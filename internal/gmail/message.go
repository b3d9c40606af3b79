// Package gmail はGmail APIによるメール送信を提供する。
// RFC 5322形式のメッセージ生成と送信エンドポイントの呼び出しを含む。
package gmail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"io"
	"time"

	"github.com/emersion/go-message/mail"
)

// Message は送信するプレーンテキストメールを表す。
type Message struct {
	From    string
	To      string
	Subject string
	Body    string
}

// BuildRaw はMessageをRFC 5322形式のバイト列に変換する。
// Fromが空の場合はヘッダーを省略し、Gmail側で認証ユーザーのアドレスが補われる。
func BuildRaw(msg Message, date time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(date)
	if msg.From != "" {
		h.SetAddressList("From", []*mail.Address{{Address: msg.From}})
	}
	h.SetAddressList("To", []*mail.Address{{Address: msg.To}})
	h.SetSubject(msg.Subject)
	h.SetContentType("text/plain", map[string]string{"charset": "utf-8"})

	var buf bytes.Buffer
	w, err := mail.CreateSingleInlineWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("failed to create message writer: %w", err)
	}
	if _, err := io.WriteString(w, msg.Body); err != nil {
		return nil, fmt.Errorf("failed to write message body: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to close message writer: %w", err)
	}
	return buf.Bytes(), nil
}

// EncodeRaw はメッセージをGmail APIのrawフィールド形式（パディングなしbase64url）に変換する。
func EncodeRaw(raw []byte) string {
	return base64.RawURLEncoding.EncodeToString(raw)
}
