package model

import "time"

// 文档摄取状态常量，状态值记录在 Redis 中。
const (
	IngestStatusPending    = "pending"
	IngestStatusProcessing = "processing"
	IngestStatusCompleted  = "completed"
	IngestStatusFailed     = "failed"
)

// Document 对应于数据库中的 documents 表，记录已上传的知识库源文件。
// FileMD5 用于重复导入检测。
type Document struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	FileMD5   string    `gorm:"type:varchar(32);not null;uniqueIndex" json:"fileMd5"`
	FileName  string    `gorm:"type:varchar(255);not null" json:"fileName"`
	FileSize  int64     `gorm:"not null" json:"fileSize"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

func (Document) TableName() string {
	return "documents"
}
