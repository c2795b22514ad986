// Package llm provides a client for interacting with Large Language Models.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"camaral-smart-go/internal/config"
	"camaral-smart-go/pkg/log"
)

// Client defines the interface for an LLM client.
type Client interface {
	// ChatCompletion 以 role-based 消息调用聊天补全接口，一次性返回完整结果。
	// 模型可能不直接作答，而是返回工具调用请求，由上层循环执行后回填。
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResult, error)
}

type openAICompatibleClient struct {
	cfg    config.LLMConfig
	client *http.Client
}

// NewClient creates a new LLM client based on the provider in the config.
func NewClient(cfg config.LLMConfig) Client {
	return &openAICompatibleClient{
		cfg:    cfg,
		client: &http.Client{},
	}
}

// Message 表示一条角色消息。工具结果消息的 Role 为 "tool"。
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
}

// Tool 描述一个可供模型调用的函数工具。
type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

// ToolFunction 是工具的函数签名定义，Parameters 为 JSON Schema。
type ToolFunction struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ToolCall 是模型发起的一次工具调用。
type ToolCall struct {
	ID       string           `json:"id"`
	Type     string           `json:"type"`
	Function ToolCallFunction `json:"function"`
}

// ToolCallFunction 携带被调用函数名与 JSON 编码的实参。
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// GenerationParams 控制生成行为
type GenerationParams struct {
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
}

// ChatRequest 是一次补全调用的全部输入。
type ChatRequest struct {
	// Model 为空时使用配置中的默认模型。
	Model      string
	Messages   []Message
	Generation *GenerationParams
	Tools      []Tool
}

// ChatResult 是一次补全调用的输出：纯文本或待执行的工具调用。
type ChatResult struct {
	Content   string
	ToolCalls []ToolCall
}

type chatRequestBody struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature *float64  `json:"temperature,omitempty"`
	TopP        *float64  `json:"top_p,omitempty"`
	MaxTokens   *int      `json:"max_tokens,omitempty"`
	Tools       []Tool    `json:"tools,omitempty"`
}

type chatResponseBody struct {
	Choices []struct {
		Message struct {
			Content   string     `json:"content"`
			ToolCalls []ToolCall `json:"tool_calls"`
		} `json:"message"`
	} `json:"choices"`
}

// ChatCompletion 调用 OpenAI 兼容的 /chat/completions 接口。
// 传输层失败或 5xx 会自动重试一次，之后的失败交由调用方处理。
func (c *openAICompatibleClient) ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	result, err := c.doChatCompletion(ctx, req)
	if err != nil {
		log.Warnf("[LLMClient] 补全调用失败，进行一次重试: %v", err)
		result, err = c.doChatCompletion(ctx, req)
	}
	return result, err
}

func (c *openAICompatibleClient) doChatCompletion(ctx context.Context, req ChatRequest) (*ChatResult, error) {
	modelName := req.Model
	if modelName == "" {
		modelName = c.cfg.Model
	}

	reqBody := chatRequestBody{
		Model:    modelName,
		Messages: req.Messages,
		Tools:    req.Tools,
	}
	// 从配置或传参注入生成参数（传参优先生效）
	if req.Generation != nil {
		reqBody.Temperature = req.Generation.Temperature
		reqBody.TopP = req.Generation.TopP
		reqBody.MaxTokens = req.Generation.MaxTokens
	} else {
		if c.cfg.Generation.Temperature != 0 {
			t := c.cfg.Generation.Temperature
			reqBody.Temperature = &t
		}
		if c.cfg.Generation.TopP != 0 {
			p := c.cfg.Generation.TopP
			reqBody.TopP = &p
		}
		if c.cfg.Generation.MaxTokens != 0 {
			m := c.cfg.Generation.MaxTokens
			reqBody.MaxTokens = &m
		}
	}

	reqBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.cfg.BaseURL+"/chat/completions", bytes.NewReader(reqBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to create chat request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to call chat api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("chat api returned non-200 status: %s, body: %s", resp.Status, string(bodyBytes))
	}

	var chatResp chatResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return nil, fmt.Errorf("failed to decode chat response: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("chat api returned no choices")
	}

	choice := chatResp.Choices[0].Message
	return &ChatResult{
		Content:   choice.Content,
		ToolCalls: choice.ToolCalls,
	}, nil
}
