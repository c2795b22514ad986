package service

import (
	"context"
	"time"

	"camaral-smart-go/internal/model"
	"camaral-smart-go/internal/repository"
	"camaral-smart-go/pkg/log"

	"github.com/google/uuid"
)

// ConversationService 定义了会话生命周期管理的接口。
//
// 会话没有独立的存储实体：同一 conversation_id 的连续消息即一次会话。
// 任一时刻每个 (userID, channelID) 至多一个活跃会话，即最新一条消息所属的会话。
// 同一用户的两条消息并发到达时，双方可能基于同一份快照各自判定超时并各铸一个新 id，
// 产生一次多余的画像总结；会话切换对单个用户是低频事件，这个竞态被有意接受，不加锁。
type ConversationService interface {
	// Resolve 返回本条入站消息应归属的会话 id。
	// 上一会话仍活跃则沿用其 id；已超时则先把它总结进用户画像，再铸造新 id。
	Resolve(ctx context.Context, userID, channelID string) (string, error)
}

type conversationService struct {
	msgRepo       repository.ChatMessageRepository
	userRepo      repository.UserRepository
	memoryService MemoryService
	timeout       time.Duration
}

// NewConversationService 创建一个新的 ConversationService 实例。
func NewConversationService(
	msgRepo repository.ChatMessageRepository,
	userRepo repository.UserRepository,
	memoryService MemoryService,
	timeout time.Duration,
) ConversationService {
	return &conversationService{
		msgRepo:       msgRepo,
		userRepo:      userRepo,
		memoryService: memoryService,
		timeout:       timeout,
	}
}

// Resolve 见接口说明。
func (s *conversationService) Resolve(ctx context.Context, userID, channelID string) (string, error) {
	latest, err := s.msgRepo.Latest(userID, channelID)
	if err != nil {
		return "", err
	}
	if latest == nil {
		// 首次联系，直接开启新会话
		return uuid.NewString(), nil
	}

	// 统一换算到 UTC 再计算间隔
	elapsed := time.Now().UTC().Sub(latest.CreatedAt.UTC())
	if elapsed <= s.timeout {
		return latest.ConversationID, nil
	}

	// 上一会话已超时：先把它总结进长期画像，再开启新会话。
	// 总结属于非关键路径，任何失败只记日志，不阻塞会话切换。
	s.summarizeExpired(ctx, userID, channelID, latest.ConversationID)

	return uuid.NewString(), nil
}

// summarizeExpired 加载已超时的会话并把提炼结果覆盖写入用户画像。
func (s *conversationService) summarizeExpired(ctx context.Context, userID, channelID, conversationID string) {
	messages, err := s.msgRepo.ListByConversation(userID, channelID, conversationID)
	if err != nil {
		log.Errorf("[ConversationService] 加载过期会话消息失败, conversation: %s, error: %v", conversationID, err)
		return
	}
	// 会话 id 只随消息存在，空会话理论上不会出现，这里防御性跳过
	if len(messages) == 0 {
		return
	}

	user, err := s.userRepo.GetOrCreate(userID, channelID)
	if err != nil {
		log.Errorf("[ConversationService] 获取用户画像失败, user: %s, channel: %s, error: %v", userID, channelID, err)
		return
	}

	history := make([]model.HistoryMessage, 0, len(messages))
	for _, m := range messages {
		history = append(history, model.HistoryMessage{Role: m.Role, Content: m.Content})
	}

	newSummary := s.memoryService.Summarize(ctx, user.ProfileSummary, history)
	user.ProfileSummary = newSummary
	user.UpdatedAt = time.Now().UTC()
	if err := s.userRepo.Update(user); err != nil {
		log.Errorf("[ConversationService] 更新用户画像失败, user: %s, channel: %s, error: %v", userID, channelID, err)
		return
	}

	log.Infow("会话已过期并完成画像归并",
		"userId", userID,
		"channelId", channelID,
		"conversationId", conversationID,
		"messageCount", len(messages),
	)
}
