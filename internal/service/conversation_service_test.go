package service

import (
	"context"
	"testing"
	"time"

	"camaral-smart-go/internal/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMemory 记录调用并返回固定画像。
type fakeMemory struct {
	called   bool
	previous string
	messages []model.HistoryMessage
	result   string
}

func (f *fakeMemory) Summarize(_ context.Context, previousSummary string, messages []model.HistoryMessage) string {
	f.called = true
	f.previous = previousSummary
	f.messages = messages
	return f.result
}

func TestResolveFirstContactMintsNewConversation(t *testing.T) {
	msgRepo := &fakeMsgRepo{}
	memory := &fakeMemory{}
	svc := NewConversationService(msgRepo, newFakeUserRepo(), memory, time.Hour)

	id, err := svc.Resolve(context.Background(), "alice", "telegram")

	require.NoError(t, err)
	_, parseErr := uuid.Parse(id)
	assert.NoError(t, parseErr, "会话 id 应当是合法的 uuid")
	assert.False(t, memory.called, "首次联系不应触发画像总结")
}

func TestResolveActiveConversationReusesID(t *testing.T) {
	msgRepo := &fakeMsgRepo{messages: []model.ChatMessage{
		{UserID: "alice", ChannelID: "telegram", ConversationID: "conv-1", Role: model.RoleUser,
			Content: "你好", CreatedAt: time.Now().UTC().Add(-10 * time.Minute)},
	}}
	memory := &fakeMemory{}
	svc := NewConversationService(msgRepo, newFakeUserRepo(), memory, time.Hour)

	id, err := svc.Resolve(context.Background(), "alice", "telegram")

	require.NoError(t, err)
	assert.Equal(t, "conv-1", id)
	assert.False(t, memory.called)
}

func TestResolveExpiredConversationSummarizesAndRotates(t *testing.T) {
	old := time.Now().UTC().Add(-2 * time.Hour)
	msgRepo := &fakeMsgRepo{messages: []model.ChatMessage{
		{UserID: "carlos", ChannelID: "telegram", ConversationID: "conv-old", Role: model.RoleUser,
			Content: "我是 Acme 的采购负责人", CreatedAt: old},
		{UserID: "carlos", ChannelID: "telegram", ConversationID: "conv-old", Role: model.RoleAssistant,
			Content: "您好！", CreatedAt: old.Add(time.Second)},
	}}
	userRepo := newFakeUserRepo()
	existing, err := userRepo.GetOrCreate("carlos", "telegram")
	require.NoError(t, err)
	existing.ProfileSummary = "旧画像"

	memory := &fakeMemory{result: "Acme 采购负责人，有商务意向"}
	svc := NewConversationService(msgRepo, userRepo, memory, time.Hour)

	id, err := svc.Resolve(context.Background(), "carlos", "telegram")

	require.NoError(t, err)
	assert.NotEqual(t, "conv-old", id)
	_, parseErr := uuid.Parse(id)
	assert.NoError(t, parseErr)

	require.True(t, memory.called, "过期会话应触发画像总结")
	assert.Equal(t, "旧画像", memory.previous)
	require.Len(t, memory.messages, 2)
	assert.Equal(t, "我是 Acme 的采购负责人", memory.messages[0].Content)

	updated, err := userRepo.Find("carlos", "telegram")
	require.NoError(t, err)
	assert.Equal(t, "Acme 采购负责人，有商务意向", updated.ProfileSummary)
}

func TestResolveExpiredRotatesEvenIfSummaryKeepsOld(t *testing.T) {
	// 总结降级返回旧画像时，会话切换照常进行
	old := time.Now().UTC().Add(-3 * time.Hour)
	msgRepo := &fakeMsgRepo{messages: []model.ChatMessage{
		{UserID: "bob", ChannelID: "web", ConversationID: "conv-x", Role: model.RoleUser,
			Content: "hi", CreatedAt: old},
	}}
	userRepo := newFakeUserRepo()
	memory := &fakeMemory{result: ""}
	svc := NewConversationService(msgRepo, userRepo, memory, time.Hour)

	id, err := svc.Resolve(context.Background(), "bob", "web")

	require.NoError(t, err)
	assert.NotEqual(t, "conv-x", id)
	assert.True(t, memory.called)
}

func TestResolveChannelsAreIndependent(t *testing.T) {
	msgRepo := &fakeMsgRepo{messages: []model.ChatMessage{
		{UserID: "alice", ChannelID: "telegram", ConversationID: "conv-tg", Role: model.RoleUser,
			Content: "你好", CreatedAt: time.Now().UTC().Add(-5 * time.Minute)},
	}}
	svc := NewConversationService(msgRepo, newFakeUserRepo(), &fakeMemory{}, time.Hour)

	webID, err := svc.Resolve(context.Background(), "alice", "web")
	require.NoError(t, err)
	assert.NotEqual(t, "conv-tg", webID, "不同渠道的会话流水互不影响")

	tgID, err := svc.Resolve(context.Background(), "alice", "telegram")
	require.NoError(t, err)
	assert.Equal(t, "conv-tg", tgID)
}
