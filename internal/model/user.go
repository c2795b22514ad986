// Package model 包含了应用的数据模型定义。
package model

import "time"

// User 代表一个渠道维度的终端用户，承载长期记忆（画像摘要）。
// (UserID, ChannelID) 唯一；画像摘要整体覆盖写入，不做追加。
type User struct {
	ID             uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID         string    `gorm:"type:varchar(64);not null;uniqueIndex:uq_users_user_channel" json:"userId"`
	ChannelID      string    `gorm:"type:varchar(32);not null;uniqueIndex:uq_users_user_channel" json:"channelId"`
	ProfileSummary string    `gorm:"type:text" json:"profileSummary"`
	UpdatedAt      time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

func (User) TableName() string {
	return "users"
}
