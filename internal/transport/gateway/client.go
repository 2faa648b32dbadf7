// Package gateway HTTP-клиент шлюза мессенджера, через который бот отправляет сообщения.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/magabrotheeeer/streaming-reseller/internal/config"
)

// ChatSuffix суффикс идентификатора личного чата.
const ChatSuffix = "@c.us"

// ErrEmptyRecipient получатель не задан.
var ErrEmptyRecipient = errors.New("empty recipient")

// SendRequest тело запроса на отправку сообщения.
type SendRequest struct {
	To   string `json:"to"`
	Text string `json:"text"`
}

// Client клиент шлюза.
type Client struct {
	apiURL     string
	token      string
	httpClient *http.Client
}

// NewClient создаёт клиент шлюза по настройкам.
func NewClient(cfg config.Gateway) *Client {
	timeout := cfg.GatewayTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		apiURL:     strings.TrimRight(cfg.GatewayURL, "/"),
		token:      cfg.GatewayToken,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// ChatID превращает телефон в идентификатор чата; готовый идентификатор не меняется.
func ChatID(to string) string {
	if strings.Contains(to, "@") {
		return to
	}
	return to + ChatSuffix
}

// Phone возвращает телефон из идентификатора чата.
func Phone(chatID string) string {
	if i := strings.IndexByte(chatID, '@'); i >= 0 {
		return chatID[:i]
	}
	return chatID
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// Send отправляет текст получателю. to телефон или идентификатор чата.
func (c *Client) Send(ctx context.Context, to, text string) error {
	const op = "gateway.Send"
	if strings.TrimSpace(to) == "" {
		return fmt.Errorf("%s: %w", op, ErrEmptyRecipient)
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/messages", SendRequest{To: ChatID(to), Text: text})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusAccepted {
		return fmt.Errorf("%s: unexpected status: %s", op, resp.Status)
	}
	return nil
}
