package gmail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
)

// DefaultEndpoint はGmailのメッセージ送信エンドポイント。
const DefaultEndpoint = "https://www.googleapis.com/gmail/v1/users/me/messages/send"

// maxResponseSize はレスポンスとして読み込む最大サイズ。
const maxResponseSize = 64 << 10

// SendResult は送信成功時にGmailが返すメッセージ識別子。
type SendResult struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId"`
}

// SendError はGmailが送信を拒否した場合のエラー。
type SendError struct {
	StatusCode int
	Message    string
}

// Error はerrorインターフェースを実装する。
func (e *SendError) Error() string {
	return fmt.Sprintf("gmail send failed with status %d: %s", e.StatusCode, e.Message)
}

// Client はGmail送信APIのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string
}

// NewClient はClientを生成する。endpointが空の場合は本番エンドポイントを使用する。
func NewClient(httpClient *http.Client, logger *slog.Logger, endpoint string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   endpoint,
	}
}

type sendRequest struct {
	Raw string `json:"raw"`
}

type errorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Send はエンコード済みメッセージをBearerトークンで送信する。
// 2xx以外の応答は*SendErrorとして返し、Gmailのエラーメッセージを含める。
func (c *Client) Send(ctx context.Context, accessToken, raw string) (*SendResult, error) {
	payload, err := json.Marshal(sendRequest{Raw: raw})
	if err != nil {
		return nil, fmt.Errorf("failed to encode send request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("gmail send request failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("gmail send request failed: %w", err)
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		sendErr := &SendError{StatusCode: resp.StatusCode, Message: http.StatusText(resp.StatusCode)}
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.Error.Message != "" {
			sendErr.Message = er.Error.Message
		}
		c.logger.Warn("gmail rejected message",
			slog.Int("http_status", resp.StatusCode),
			slog.String("reason", sendErr.Message),
		)
		return nil, sendErr
	}

	// 2xxの時点で受理済み。識別子が読めなくても送信失敗として扱わない
	var result SendResult
	if readErr != nil {
		c.logger.Warn("gmail accepted message but response could not be read", slog.String("error", readErr.Error()))
		return &result, nil
	}
	if err := json.Unmarshal(body, &result); err != nil {
		c.logger.Warn("gmail accepted message but response could not be parsed",
			slog.Int("http_status", resp.StatusCode),
			slog.String("error", err.Error()),
		)
		return &SendResult{}, nil
	}
	return &result, nil
}
