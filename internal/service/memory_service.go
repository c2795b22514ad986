package service

import (
	"context"
	"fmt"
	"strings"

	"camaral-smart-go/internal/model"
	"camaral-smart-go/pkg/llm"
	"camaral-smart-go/pkg/log"
)

// summaryPrompt 是画像总结使用的过滤型提示词。
// 只保留有长期价值的信息（身份背景、商务意向、沟通偏好），
// 丢弃已解决的技术支持问题、寒暄和一次性抱怨。
const summaryPrompt = `你是一名资深的 CRM 数据分析师，负责根据客户的最近一次对话更新客户画像。

输入：
- 既有画像：%s
- 最近对话：
%s

过滤规则：
1) 提取并合并（保留）：身份信息（姓名、职位、公司、所在地）；商务意向（想购买？需要 API？只是好奇？）；沟通偏好（正式？技术向？直接？）。
2) 忽略（丢弃）：已解决的技术支持问题（bug、加载报错、界面疑问）；空洞的问候和道别；一次性的平台抱怨。

输出：一段更新后的画像纯文本。如果这次对话没有任何画像价值（只有临时性的技术支持内容），原样返回既有画像。`

// MemoryService 定义了长期记忆（用户画像总结）的接口。
type MemoryService interface {
	// Summarize 将一段已结束的会话合并进既有画像并返回更新后的画像。
	// 任何失败都不会向上传播：逐个降级到候选模型，全部失败则原样返回既有画像。
	Summarize(ctx context.Context, previousSummary string, messages []model.HistoryMessage) string
}

type memoryService struct {
	llmClient llm.Client
	// candidateModels 是按优先级排列的模型 id 列表，前一个失败则尝试下一个。
	candidateModels []string
	maxTokens       int
}

// NewMemoryService 创建一个新的 MemoryService 实例。
func NewMemoryService(llmClient llm.Client, candidateModels []string, maxTokens int) MemoryService {
	if maxTokens <= 0 {
		maxTokens = 1024
	}
	return &memoryService{
		llmClient:       llmClient,
		candidateModels: candidateModels,
		maxTokens:       maxTokens,
	}
}

// Summarize 见接口说明。消息为空时直接返回既有画像（快速路径）。
func (s *memoryService) Summarize(ctx context.Context, previousSummary string, messages []model.HistoryMessage) string {
	if len(messages) == 0 {
		return previousSummary
	}

	previous := previousSummary
	if previous == "" {
		previous = "（无）"
	}
	prompt := fmt.Sprintf(summaryPrompt, previous, formatMessages(messages))

	// 画像总结要求可复现：temperature=0，输出长度有界
	temperature := 0.0
	maxTokens := s.maxTokens
	gen := &llm.GenerationParams{
		Temperature: &temperature,
		MaxTokens:   &maxTokens,
	}

	candidates := s.candidateModels
	if len(candidates) == 0 {
		candidates = []string{""} // 空串表示使用客户端配置的默认模型
	}

	for _, modelName := range candidates {
		result, err := s.llmClient.ChatCompletion(ctx, llm.ChatRequest{
			Model:      modelName,
			Messages:   []llm.Message{{Role: "user", Content: prompt}},
			Generation: gen,
		})
		if err != nil {
			log.Warnf("[MemoryService] 模型 '%s' 总结画像失败，尝试下一个候选: %v", modelName, err)
			continue
		}
		summary := strings.TrimSpace(result.Content)
		if summary != "" {
			return summary
		}
		log.Warnf("[MemoryService] 模型 '%s' 返回了空的画像文本，尝试下一个候选", modelName)
	}

	// 所有候选模型都失败：保留既有画像，总结失败绝不能丢掉已有的长期记忆
	log.Warnf("[MemoryService] 全部候选模型失败，保留既有画像不变")
	return previousSummary
}

// formatMessages 将消息列表格式化为 "role: content" 的多行文本。
func formatMessages(messages []model.HistoryMessage) string {
	lines := make([]string, 0, len(messages))
	for _, m := range messages {
		role := m.Role
		if role == "" {
			role = "unknown"
		}
		lines = append(lines, fmt.Sprintf("%s: %s", role, m.Content))
	}
	return strings.Join(lines, "\n")
}
