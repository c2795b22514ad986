package service

import (
	"context"
	"sort"
	"testing"

	"camaral-smart-go/internal/model"
	"camaral-smart-go/pkg/llm"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondDirectAnswerPersistsExchange(t *testing.T) {
	client := &fakeLLM{script: []func(llm.ChatRequest) (*llm.ChatResult, error){
		func(req llm.ChatRequest) (*llm.ChatResult, error) {
			return &llm.ChatResult{Content: "您好，有什么可以帮您？"}, nil
		},
	}}
	msgRepo := &fakeMsgRepo{}
	svc := NewChatService(newFakeUserRepo(), msgRepo, &fakeRetrieval{}, client, 20)

	reply, err := svc.Respond(context.Background(), "alice", "telegram", "conv-1", "你好")

	require.NoError(t, err)
	assert.Equal(t, "您好，有什么可以帮您？", reply)

	// 一问一答两条都已落库，归属同一会话
	require.Len(t, msgRepo.messages, 2)
	assert.Equal(t, model.RoleUser, msgRepo.messages[0].Role)
	assert.Equal(t, "你好", msgRepo.messages[0].Content)
	assert.Equal(t, model.RoleAssistant, msgRepo.messages[1].Role)
	assert.Equal(t, "您好，有什么可以帮您？", msgRepo.messages[1].Content)
	assert.Equal(t, "conv-1", msgRepo.messages[0].ConversationID)
	assert.Equal(t, "conv-1", msgRepo.messages[1].ConversationID)
}

func TestRespondExchangeOrderIsDeterministicByTimestamp(t *testing.T) {
	client := &fakeLLM{script: []func(llm.ChatRequest) (*llm.ChatResult, error){
		func(req llm.ChatRequest) (*llm.ChatResult, error) {
			return &llm.ChatResult{Content: "回复"}, nil
		},
	}}
	msgRepo := &fakeMsgRepo{}
	svc := NewChatService(newFakeUserRepo(), msgRepo, &fakeRetrieval{}, client, 20)

	_, err := svc.Respond(context.Background(), "alice", "telegram", "conv-1", "提问")
	require.NoError(t, err)

	// 读取侧只按 created_at 排序，提问的时间戳必须严格早于回复，
	// 否则同一问答对的先后顺序取决于存储引擎
	require.Len(t, msgRepo.messages, 2)
	userMsg, assistantMsg := msgRepo.messages[0], msgRepo.messages[1]
	assert.Equal(t, model.RoleUser, userMsg.Role)
	assert.Equal(t, model.RoleAssistant, assistantMsg.Role)
	assert.True(t, userMsg.CreatedAt.Before(assistantMsg.CreatedAt))

	sorted := []model.ChatMessage{assistantMsg, userMsg}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].CreatedAt.Before(sorted[j].CreatedAt) })
	assert.Equal(t, model.RoleUser, sorted[0].Role, "按时间戳重排后应当先问后答")
	assert.Equal(t, model.RoleAssistant, sorted[1].Role)
}

func TestRespondExecutesToolCallAndFeedsResultBack(t *testing.T) {
	retrieval := &fakeRetrieval{text: "[faq.pdf#0]\n退款需在 7 天内申请。"}
	client := &fakeLLM{script: []func(llm.ChatRequest) (*llm.ChatResult, error){
		func(req llm.ChatRequest) (*llm.ChatResult, error) {
			return &llm.ChatResult{ToolCalls: []llm.ToolCall{{
				ID:   "call-1",
				Type: "function",
				Function: llm.ToolCallFunction{
					Name:      "search_knowledge_base",
					Arguments: `{"query":"退款政策"}`,
				},
			}}}, nil
		},
		func(req llm.ChatRequest) (*llm.ChatResult, error) {
			// 第二轮请求应包含工具结果消息
			last := req.Messages[len(req.Messages)-1]
			require.Equal(t, "tool", last.Role)
			require.Equal(t, "call-1", last.ToolCallID)
			require.Equal(t, "[faq.pdf#0]\n退款需在 7 天内申请。", last.Content)
			return &llm.ChatResult{Content: "退款需在 **7 天内** 申请。"}, nil
		},
	}}
	msgRepo := &fakeMsgRepo{}
	svc := NewChatService(newFakeUserRepo(), msgRepo, retrieval, client, 20)

	reply, err := svc.Respond(context.Background(), "alice", "telegram", "conv-1", "怎么退款？")

	require.NoError(t, err)
	assert.Equal(t, "退款需在 7 天内 申请。", reply, "回复应剥掉 Markdown 标记")
	require.Len(t, retrieval.queries, 1)
	assert.Equal(t, "退款政策", retrieval.queries[0])
	require.Len(t, client.requests, 2)
	// 两轮请求都应携带工具定义
	require.Len(t, client.requests[0].Tools, 1)
	assert.Equal(t, "search_knowledge_base", client.requests[0].Tools[0].Function.Name)
}

func TestRespondInjectsProfileAndHistory(t *testing.T) {
	userRepo := newFakeUserRepo()
	u, err := userRepo.GetOrCreate("carlos", "telegram")
	require.NoError(t, err)
	u.ProfileSummary = "Acme 采购负责人"

	msgRepo := &fakeMsgRepo{messages: []model.ChatMessage{
		{UserID: "carlos", ChannelID: "telegram", ConversationID: "conv-1", Role: model.RoleUser, Content: "价格怎么算？"},
		{UserID: "carlos", ChannelID: "telegram", ConversationID: "conv-1", Role: model.RoleAssistant, Content: "按席位计费。"},
	}}
	client := &fakeLLM{script: []func(llm.ChatRequest) (*llm.ChatResult, error){
		func(req llm.ChatRequest) (*llm.ChatResult, error) {
			return &llm.ChatResult{Content: "好的"}, nil
		},
	}}
	svc := NewChatService(userRepo, msgRepo, &fakeRetrieval{}, client, 20)

	_, err = svc.Respond(context.Background(), "carlos", "telegram", "conv-1", "那企业版呢？")
	require.NoError(t, err)

	require.Len(t, client.requests, 1)
	msgs := client.requests[0].Messages
	// system 规则 + 画像 + 两条历史 + 当前消息
	require.Len(t, msgs, 5)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "system", msgs[1].Role)
	assert.Contains(t, msgs[1].Content, "Acme 采购负责人")
	assert.Equal(t, "价格怎么算？", msgs[2].Content)
	assert.Equal(t, "按席位计费。", msgs[3].Content)
	assert.Equal(t, "那企业版呢？", msgs[4].Content)
}

func TestRespondUnknownUserSkipsProfileMessage(t *testing.T) {
	client := &fakeLLM{script: []func(llm.ChatRequest) (*llm.ChatResult, error){
		func(req llm.ChatRequest) (*llm.ChatResult, error) {
			return &llm.ChatResult{Content: "您好"}, nil
		},
	}}
	svc := NewChatService(newFakeUserRepo(), &fakeMsgRepo{}, &fakeRetrieval{}, client, 20)

	_, err := svc.Respond(context.Background(), "stranger", "web", "conv-1", "你好")
	require.NoError(t, err)

	require.Len(t, client.requests, 1)
	msgs := client.requests[0].Messages
	// 没有画像时只有 system 规则和当前消息
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].Role)
	assert.Equal(t, "user", msgs[1].Role)
}

func TestRespondToolFailureReportedToModel(t *testing.T) {
	retrieval := &fakeRetrieval{err: assert.AnError}
	client := &fakeLLM{script: []func(llm.ChatRequest) (*llm.ChatResult, error){
		func(req llm.ChatRequest) (*llm.ChatResult, error) {
			return &llm.ChatResult{ToolCalls: []llm.ToolCall{{
				ID:       "call-1",
				Type:     "function",
				Function: llm.ToolCallFunction{Name: "search_knowledge_base", Arguments: `{"query":"x"}`},
			}}}, nil
		},
		func(req llm.ChatRequest) (*llm.ChatResult, error) {
			last := req.Messages[len(req.Messages)-1]
			require.Equal(t, "tool", last.Role)
			require.Equal(t, "知识库检索暂时不可用。", last.Content)
			return &llm.ChatResult{Content: "抱歉，请稍后再试。"}, nil
		},
	}}
	svc := NewChatService(newFakeUserRepo(), &fakeMsgRepo{}, retrieval, client, 20)

	reply, err := svc.Respond(context.Background(), "alice", "web", "conv-1", "问题")

	require.NoError(t, err, "工具失败不应中断整个回复流程")
	assert.Equal(t, "抱歉，请稍后再试。", reply)
}

func TestRespondTooManyToolRoundsFails(t *testing.T) {
	loop := func(req llm.ChatRequest) (*llm.ChatResult, error) {
		return &llm.ChatResult{ToolCalls: []llm.ToolCall{{
			ID:       "call-n",
			Type:     "function",
			Function: llm.ToolCallFunction{Name: "search_knowledge_base", Arguments: `{"query":"x"}`},
		}}}, nil
	}
	client := &fakeLLM{script: []func(llm.ChatRequest) (*llm.ChatResult, error){loop, loop, loop, loop, loop, loop}}
	msgRepo := &fakeMsgRepo{}
	svc := NewChatService(newFakeUserRepo(), msgRepo, &fakeRetrieval{text: "ctx"}, client, 20)

	_, err := svc.Respond(context.Background(), "alice", "web", "conv-1", "问题")

	assert.Error(t, err)
	assert.Empty(t, msgRepo.messages, "失败的回复不应落库")
}
