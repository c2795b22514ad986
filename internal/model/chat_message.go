package model

import "time"

// 消息角色常量。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ChatMessage 代表 chat_messages 表中的一条消息，只追加、不修改、不删除。
// 会话本身没有独立的表：同一 conversation_id 的连续消息即构成一次会话，
// 会话是否过期由最新一条消息的 created_at 与超时阈值决定。
type ChatMessage struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         string    `gorm:"type:varchar(64);not null;index" json:"userId"`
	ChannelID      string    `gorm:"type:varchar(32);not null;index" json:"channelId"`
	ConversationID string    `gorm:"type:varchar(36);not null;index" json:"conversationId"`
	Role           string    `gorm:"type:varchar(16);not null" json:"role"` // "user" 或 "assistant"
	Content        string    `gorm:"type:text;not null" json:"content"`
	CreatedAt      time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

func (ChatMessage) TableName() string {
	return "chat_messages"
}

// HistoryMessage 是提示词视角的一条历史消息（role + content），
// 供画像总结与补全调用使用。
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}
