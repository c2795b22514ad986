package repository

import (
	"errors"

	"camaral-smart-go/internal/model"

	"gorm.io/gorm"
)

// ChatMessageRepository 定义了对话消息日志的操作接口。消息只追加，不修改、不删除。
type ChatMessageRepository interface {
	// Latest 返回该用户在该渠道下最新的一条消息；没有任何消息时返回 (nil, nil)。
	Latest(userID, channelID string) (*model.ChatMessage, error)
	// ListByConversation 按 created_at 升序返回某次会话的全部消息。
	ListByConversation(userID, channelID, conversationID string) ([]model.ChatMessage, error)
	// ListRecent 返回某次会话最近的 limit 条消息，按 created_at 升序（最旧在前）。
	ListRecent(userID, channelID, conversationID string, limit int) ([]model.ChatMessage, error)
	// AppendExchange 在同一事务中追加一问一答两条消息，保证两条同时落库或同时失败。
	AppendExchange(userMsg, assistantMsg *model.ChatMessage) error
}

// chatMessageRepository 是 ChatMessageRepository 接口的 GORM 实现。
type chatMessageRepository struct {
	db *gorm.DB
}

// NewChatMessageRepository 创建一个新的 ChatMessageRepository 实例。
func NewChatMessageRepository(db *gorm.DB) ChatMessageRepository {
	return &chatMessageRepository{db: db}
}

// Latest 查询该 (userID, channelID) 最新的一条消息，用于判定当前活跃会话。
func (r *chatMessageRepository) Latest(userID, channelID string) (*model.ChatMessage, error) {
	var msg model.ChatMessage
	err := r.db.
		Where("user_id = ? AND channel_id = ?", userID, channelID).
		Order("created_at DESC, id DESC").
		First(&msg).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &msg, nil
}

// ListByConversation 按时间升序加载整段会话，供画像总结使用。
func (r *chatMessageRepository) ListByConversation(userID, channelID, conversationID string) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	err := r.db.
		Where("user_id = ? AND channel_id = ? AND conversation_id = ?", userID, channelID, conversationID).
		Order("created_at ASC, id ASC").
		Find(&messages).Error
	return messages, err
}

// ListRecent 加载会话最近的 limit 条消息并还原为升序，供短期记忆窗口使用。
func (r *chatMessageRepository) ListRecent(userID, channelID, conversationID string, limit int) ([]model.ChatMessage, error) {
	var messages []model.ChatMessage
	err := r.db.
		Where("user_id = ? AND channel_id = ? AND conversation_id = ?", userID, channelID, conversationID).
		Order("created_at DESC, id DESC").
		Limit(limit).
		Find(&messages).Error
	if err != nil {
		return nil, err
	}
	// 倒序查询取到最近 N 条，这里翻转回最旧在前
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	return messages, nil
}

// AppendExchange 以单个事务写入用户消息与助手回复。
func (r *chatMessageRepository) AppendExchange(userMsg, assistantMsg *model.ChatMessage) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(userMsg).Error; err != nil {
			return err
		}
		return tx.Create(assistantMsg).Error
	})
}
