package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"camaral-smart-go/internal/model"
	"camaral-smart-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeEmptyMessagesReturnsPrevious(t *testing.T) {
	client := &fakeLLM{}
	svc := NewMemoryService(client, []string{"model-a"}, 1024)

	got := svc.Summarize(context.Background(), "老客户，技术背景", nil)

	assert.Equal(t, "老客户，技术背景", got)
	assert.Empty(t, client.requests, "空会话不应触发模型调用")
}

func TestSummarizeUsesZeroTemperature(t *testing.T) {
	client := &fakeLLM{script: []func(llm.ChatRequest) (*llm.ChatResult, error){
		func(req llm.ChatRequest) (*llm.ChatResult, error) {
			return &llm.ChatResult{Content: "新画像"}, nil
		},
	}}
	svc := NewMemoryService(client, []string{"model-a"}, 512)

	got := svc.Summarize(context.Background(), "", []model.HistoryMessage{
		{Role: "user", Content: "我是 Acme 的 CTO"},
	})

	assert.Equal(t, "新画像", got)
	require.Len(t, client.requests, 1)
	req := client.requests[0]
	assert.Equal(t, "model-a", req.Model)
	require.NotNil(t, req.Generation)
	require.NotNil(t, req.Generation.Temperature)
	assert.Equal(t, 0.0, *req.Generation.Temperature)
	require.NotNil(t, req.Generation.MaxTokens)
	assert.Equal(t, 512, *req.Generation.MaxTokens)
	// 没有既有画像时，提示词中以占位符表示
	require.Len(t, req.Messages, 1)
	assert.Contains(t, req.Messages[0].Content, "（无）")
	assert.Contains(t, req.Messages[0].Content, "user: 我是 Acme 的 CTO")
}

func TestSummarizeFallsBackToNextModel(t *testing.T) {
	client := &fakeLLM{script: []func(llm.ChatRequest) (*llm.ChatResult, error){
		func(llm.ChatRequest) (*llm.ChatResult, error) {
			return nil, errors.New("model overloaded")
		},
		func(llm.ChatRequest) (*llm.ChatResult, error) {
			return &llm.ChatResult{Content: "  合并后的画像  "}, nil
		},
	}}
	svc := NewMemoryService(client, []string{"model-a", "model-b", "model-c"}, 0)

	got := svc.Summarize(context.Background(), "旧画像", []model.HistoryMessage{
		{Role: "user", Content: "下季度想采购企业版"},
	})

	assert.Equal(t, "合并后的画像", got)
	require.Len(t, client.requests, 2, "第二个候选成功后不应再尝试其余模型")
	assert.Equal(t, "model-a", client.requests[0].Model)
	assert.Equal(t, "model-b", client.requests[1].Model)
}

func TestSummarizeSkipsEmptyContent(t *testing.T) {
	client := &fakeLLM{script: []func(llm.ChatRequest) (*llm.ChatResult, error){
		func(llm.ChatRequest) (*llm.ChatResult, error) {
			return &llm.ChatResult{Content: "   "}, nil
		},
		func(llm.ChatRequest) (*llm.ChatResult, error) {
			return &llm.ChatResult{Content: "有效画像"}, nil
		},
	}}
	svc := NewMemoryService(client, []string{"model-a", "model-b"}, 1024)

	got := svc.Summarize(context.Background(), "旧画像", []model.HistoryMessage{
		{Role: "user", Content: "你好"},
	})

	assert.Equal(t, "有效画像", got)
	assert.Len(t, client.requests, 2)
}

func TestSummarizeAllModelsFailKeepsPrevious(t *testing.T) {
	fail := func(llm.ChatRequest) (*llm.ChatResult, error) {
		return nil, errors.New("unavailable")
	}
	client := &fakeLLM{script: []func(llm.ChatRequest) (*llm.ChatResult, error){fail, fail, fail}}
	svc := NewMemoryService(client, []string{"model-a", "model-b", "model-c"}, 1024)

	got := svc.Summarize(context.Background(), "必须保住的旧画像", []model.HistoryMessage{
		{Role: "user", Content: "随便说点什么"},
	})

	assert.Equal(t, "必须保住的旧画像", got)
	assert.Len(t, client.requests, 3)
}

func TestSummarizeNoCandidatesUsesDefaultModel(t *testing.T) {
	client := &fakeLLM{script: []func(llm.ChatRequest) (*llm.ChatResult, error){
		func(req llm.ChatRequest) (*llm.ChatResult, error) {
			return &llm.ChatResult{Content: "画像"}, nil
		},
	}}
	svc := NewMemoryService(client, nil, 1024)

	got := svc.Summarize(context.Background(), "", []model.HistoryMessage{
		{Role: "user", Content: "hi"},
	})

	assert.Equal(t, "画像", got)
	require.Len(t, client.requests, 1)
	assert.Equal(t, "", client.requests[0].Model, "空模型名表示使用客户端默认模型")
}

func TestFormatMessages(t *testing.T) {
	got := formatMessages([]model.HistoryMessage{
		{Role: "user", Content: "怎么开发票？"},
		{Role: "assistant", Content: "请在后台申请。"},
		{Content: "孤儿消息"},
	})

	lines := strings.Split(got, "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "user: 怎么开发票？", lines[0])
	assert.Equal(t, "assistant: 请在后台申请。", lines[1])
	assert.Equal(t, "unknown: 孤儿消息", lines[2])
}
