package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"camaral-smart-go/internal/config"
	"camaral-smart-go/internal/model"
	"camaral-smart-go/internal/repository"
	"camaral-smart-go/pkg/llm"
	"camaral-smart-go/pkg/log"

	"gorm.io/gorm"
)

// defaultSystemPrompt 是客服智能体的内置系统提示，可被配置覆盖。
const defaultSystemPrompt = "你是 Camaral 的智能客服。回答用户问题前，先调用 search_knowledge_base 工具检索公司知识库，并且只依据检索结果作答；如果知识库中没有答案，如实说明并主动提出转接人工。回答保持简洁、有帮助。"

// searchToolName 是暴露给模型的检索工具名。
const searchToolName = "search_knowledge_base"

// maxToolRounds 限制一次回复中模型可连续发起的工具调用轮数。
const maxToolRounds = 5

// ChatService 定义了响应编排的接口：
// 加载画像与短期历史，驱动模型（含工具调用），落库并返回纯文本回复。
type ChatService interface {
	Respond(ctx context.Context, userID, channelID, conversationID, message string) (string, error)
}

type chatService struct {
	userRepo         repository.UserRepository
	msgRepo          repository.ChatMessageRepository
	retrievalService RetrievalService
	llmClient        llm.Client
	historyLimit     int
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(
	userRepo repository.UserRepository,
	msgRepo repository.ChatMessageRepository,
	retrievalService RetrievalService,
	llmClient llm.Client,
	historyLimit int,
) ChatService {
	return &chatService{
		userRepo:         userRepo,
		msgRepo:          msgRepo,
		retrievalService: retrievalService,
		llmClient:        llmClient,
		historyLimit:     historyLimit,
	}
}

// Respond 编排一次完整的问答：画像 + 历史 + 工具调用循环 + 落库。
func (s *chatService) Respond(ctx context.Context, userID, channelID, conversationID, message string) (string, error) {
	profile, err := s.loadProfile(userID, channelID)
	if err != nil {
		return "", fmt.Errorf("failed to load profile: %w", err)
	}

	history, err := s.msgRepo.ListRecent(userID, channelID, conversationID, s.historyLimit)
	if err != nil {
		log.Errorf("[ChatService] 加载会话历史失败: %v", err)
		history = nil
	}

	messages := s.composeMessages(profile, history, message)
	reply, err := s.runAgentLoop(ctx, messages)
	if err != nil {
		return "", err
	}

	// 渠道只渲染纯文本，剥掉模型可能输出的富文本标记
	reply = StripMarkdown(strings.TrimSpace(reply))

	// 一问一答在同一事务中落库，两条同时生效或同时失败。
	// 回复的时间戳严格晚于提问，按 created_at 读取时先问后答的顺序才是确定的。
	now := time.Now().UTC()
	userMsg := &model.ChatMessage{
		UserID:         userID,
		ChannelID:      channelID,
		ConversationID: conversationID,
		Role:           model.RoleUser,
		Content:        message,
		CreatedAt:      now,
	}
	assistantMsg := &model.ChatMessage{
		UserID:         userID,
		ChannelID:      channelID,
		ConversationID: conversationID,
		Role:           model.RoleAssistant,
		Content:        reply,
		CreatedAt:      now.Add(time.Millisecond),
	}
	if err := s.msgRepo.AppendExchange(userMsg, assistantMsg); err != nil {
		return "", fmt.Errorf("failed to persist exchange: %w", err)
	}

	return reply, nil
}

// loadProfile 加载用户画像摘要，没有记录时返回空字符串。
func (s *chatService) loadProfile(userID, channelID string) (string, error) {
	user, err := s.userRepo.Find(userID, channelID)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return user.ProfileSummary, nil
}

// composeMessages 组装 system 提示、画像旁路信息、历史轮次与当前消息。
func (s *chatService) composeMessages(profile string, history []model.ChatMessage, userInput string) []llm.Message {
	rules := config.Conf.LLM.Prompt.Rules
	if rules == "" {
		rules = defaultSystemPrompt
	}

	msgs := make([]llm.Message, 0, len(history)+3)
	msgs = append(msgs, llm.Message{Role: "system", Content: rules})
	// 画像仅在非空时注入，且只作为个性化参考，不作为事实依据
	if profile != "" {
		msgs = append(msgs, llm.Message{
			Role:    "system",
			Content: "已知的用户背景信息（仅用于个性化表达，不作为事实依据）：" + profile,
		})
	}
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, llm.Message{Role: "user", Content: userInput})
	return msgs
}

// runAgentLoop 驱动模型直至产出最终文本。模型可以多次调用检索工具，
// 每轮把工具结果回填后继续，超过轮数上限视为失败。
func (s *chatService) runAgentLoop(ctx context.Context, messages []llm.Message) (string, error) {
	tools := []llm.Tool{searchTool()}

	for round := 0; round < maxToolRounds; round++ {
		result, err := s.llmClient.ChatCompletion(ctx, llm.ChatRequest{
			Messages: messages,
			Tools:    tools,
		})
		if err != nil {
			return "", fmt.Errorf("chat completion failed: %w", err)
		}

		if len(result.ToolCalls) == 0 {
			return result.Content, nil
		}

		// 回填 assistant 的工具调用消息，再逐个执行工具
		messages = append(messages, llm.Message{
			Role:      "assistant",
			Content:   result.Content,
			ToolCalls: result.ToolCalls,
		})
		for _, call := range result.ToolCalls {
			messages = append(messages, llm.Message{
				Role:       "tool",
				ToolCallID: call.ID,
				Content:    s.executeToolCall(ctx, call),
			})
		}
	}

	return "", errors.New("模型连续工具调用超过轮数上限，未产出最终回答")
}

// executeToolCall 执行一次模型发起的工具调用并返回工具输出文本。
// 工具失败不终止整个回复流程，把失败情况如实告诉模型。
func (s *chatService) executeToolCall(ctx context.Context, call llm.ToolCall) string {
	if call.Function.Name != searchToolName {
		log.Warnf("[ChatService] 模型调用了未注册的工具: %s", call.Function.Name)
		return "未知工具。"
	}

	var args struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil || args.Query == "" {
		log.Warnf("[ChatService] 工具实参解析失败: %v, arguments: %s", err, call.Function.Arguments)
		return "检索参数无效。"
	}

	contextText, err := s.retrievalService.Retrieve(ctx, args.Query)
	if err != nil {
		log.Errorf("[ChatService] 知识库检索失败, query: '%s', error: %v", args.Query, err)
		return "知识库检索暂时不可用。"
	}
	return contextText
}

// searchTool 构建暴露给模型的知识库检索工具定义。
func searchTool() llm.Tool {
	return llm.Tool{
		Type: "function",
		Function: llm.ToolFunction{
			Name:        searchToolName,
			Description: "检索公司知识库中与用户问题相关的内容。回答关于 Camaral 的问题前应先调用本工具。",
			Parameters: json.RawMessage(`{
				"type": "object",
				"properties": {
					"query": { "type": "string", "description": "检索查询语句" }
				},
				"required": ["query"]
			}`),
		},
	}
}

func isNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
