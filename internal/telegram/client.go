// Package telegram speaks the Telegram Bot API over plain HTTP. It is the
// Messaging Gateway collaborator of the relay core.
package telegram

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

	"github.com/ent0n29/claudegram/internal/bot"
)

const defaultAPIBase = "https://api.telegram.org"

// APIError is a Bot API level rejection (ok=false in the envelope).
type APIError struct {
	Code        int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram api error %d: %s", e.Code, e.Description)
}

// Client is a minimal Bot API client.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(token string) *Client {
	return NewClientWithBaseURL(token, defaultAPIBase)
}

// NewClientWithBaseURL exists for tests pointing at a local fake server.
func NewClientWithBaseURL(token, baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/") + "/bot" + token,
		// Must exceed the long-poll hold time in GetUpdates.
		client: &http.Client{Timeout: 65 * time.Second},
	}
}

// Send delivers one message. With markdown set it first tries Telegram's
// Markdown parse mode and falls back to plain text when the API rejects the
// formatting, so a reply with broken markup still reaches the user.
func (c *Client) Send(ctx context.Context, chatID int64, text string, markdown bool) (bot.MessageRef, error) {
	params := map[string]any{"chat_id": chatID, "text": text}
	if markdown {
		params["parse_mode"] = "Markdown"
	}

	var msg Message
	err := c.call(ctx, "sendMessage", params, &msg)
	var apiErr *APIError
	if err != nil && markdown && errors.As(err, &apiErr) {
		delete(params, "parse_mode")
		err = c.call(ctx, "sendMessage", params, &msg)
	}
	if err != nil {
		return bot.MessageRef{}, err
	}
	return bot.MessageRef{ChatID: chatID, MessageID: msg.MessageID}, nil
}

func (c *Client) Edit(ctx context.Context, ref bot.MessageRef, text string) error {
	return c.call(ctx, "editMessageText", map[string]any{
		"chat_id":    ref.ChatID,
		"message_id": ref.MessageID,
		"text":       text,
	}, nil)
}

func (c *Client) Delete(ctx context.Context, ref bot.MessageRef) error {
	return c.call(ctx, "deleteMessage", map[string]any{
		"chat_id":    ref.ChatID,
		"message_id": ref.MessageID,
	}, nil)
}

// GetUpdates long-polls for new updates starting at offset.
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeout time.Duration) ([]Update, error) {
	params := map[string]any{
		"offset":          offset,
		"timeout":         int(timeout.Seconds()),
		"allowed_updates": []string{"message"},
	}
	var updates []Update
	if err := c.call(ctx, "getUpdates", params, &updates); err != nil {
		return nil, err
	}
	return updates, nil
}

func (c *Client) SetWebhook(ctx context.Context, url, secret string) error {
	params := map[string]any{"url": url}
	if secret != "" {
		params["secret_token"] = secret
	}
	return c.call(ctx, "setWebhook", params, nil)
}

func (c *Client) DeleteWebhook(ctx context.Context) error {
	return c.call(ctx, "deleteWebhook", map[string]any{}, nil)
}

func (c *Client) WebhookInfo(ctx context.Context) (WebhookInfo, error) {
	var info WebhookInfo
	if err := c.call(ctx, "getWebhookInfo", map[string]any{}, &info); err != nil {
		return WebhookInfo{}, err
	}
	return info, nil
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

func (c *Client) call(ctx context.Context, method string, params any, out any) error {
	payload, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal %s params: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/"+method, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create %s request: %w", method, err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("send %s request: %w", method, err)
	}
	defer res.Body.Close()

	body, err := io.ReadAll(io.LimitReader(res.Body, 4<<20))
	if err != nil {
		return fmt.Errorf("read %s response: %w", method, err)
	}

	var envelope apiResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return fmt.Errorf("decode %s response (status %d): %w", method, res.StatusCode, err)
	}
	if !envelope.OK {
		return &APIError{Code: envelope.ErrorCode, Description: envelope.Description}
	}
	if out != nil && len(envelope.Result) > 0 {
		if err := json.Unmarshal(envelope.Result, out); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}
