// Package telegram 提供了一个精简的 Telegram Bot API 客户端（长轮询 + 发消息）。
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const apiBaseURL = "https://api.telegram.org"

// Update 是 getUpdates 返回的一条更新。
type Update struct {
	UpdateID int64    `json:"update_id"`
	Message  *Message `json:"message"`
}

// Message 是一条入站消息。非文本消息的 Text 为空字符串。
type Message struct {
	MessageID int64   `json:"message_id"`
	From      *TgUser `json:"from"`
	Chat      Chat    `json:"chat"`
	Text      string  `json:"text"`
}

// TgUser 是 Telegram 侧的用户标识。
type TgUser struct {
	ID int64 `json:"id"`
}

// Chat 标识消息所在的会话（私聊时即用户本人）。
type Chat struct {
	ID int64 `json:"id"`
}

// Client 是 Bot API 的 HTTP 客户端。
type Client struct {
	token  string
	client *http.Client
}

// NewClient 创建一个新的 Telegram 客户端实例。
func NewClient(token string) *Client {
	return &Client{
		token: token,
		// 长轮询请求本身会挂起，超时需要显著大于 poll timeout
		client: &http.Client{Timeout: 90 * time.Second},
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

// GetUpdates 长轮询获取 offset 之后的更新。
func (c *Client) GetUpdates(ctx context.Context, offset int64, timeoutSeconds int) ([]Update, error) {
	url := fmt.Sprintf("%s/bot%s/getUpdates?offset=%d&timeout=%d&allowed_updates=[\"message\"]",
		apiBaseURL, c.token, offset, timeoutSeconds)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("创建 getUpdates 请求失败: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("调用 getUpdates 失败: %w", err)
	}
	defer resp.Body.Close()

	result, err := decodeAPIResponse(resp)
	if err != nil {
		return nil, err
	}

	var updates []Update
	if err := json.Unmarshal(result, &updates); err != nil {
		return nil, fmt.Errorf("解析 getUpdates 结果失败: %w", err)
	}
	return updates, nil
}

// SendMessage 向指定会话发送纯文本消息。
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	payload := map[string]interface{}{
		"chat_id": chatID,
		"text":    text,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("序列化 sendMessage 请求失败: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", apiBaseURL, c.token)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("创建 sendMessage 请求失败: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("调用 sendMessage 失败: %w", err)
	}
	defer resp.Body.Close()

	if _, err := decodeAPIResponse(resp); err != nil {
		return err
	}
	return nil
}

func decodeAPIResponse(resp *http.Response) (json.RawMessage, error) {
	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("telegram api 返回非 200 状态码: %s, body: %s", resp.Status, string(bodyBytes))
	}
	var apiResp apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("解析 telegram api 响应失败: %w", err)
	}
	if !apiResp.OK {
		return nil, fmt.Errorf("telegram api 返回错误: %s", apiResp.Description)
	}
	return apiResp.Result, nil
}
