package model

// DocumentChunk 对应于数据库中的 document_chunks 表。
// 它保存切块后的原文，是向量索引的事实来源；向量本身只存在于 Elasticsearch。
type DocumentChunk struct {
	ChunkPK     uint   `gorm:"primaryKey;autoIncrement;column:chunk_pk" json:"chunkPk"`
	FileMD5     string `gorm:"type:varchar(32);not null;index;column:file_md5" json:"fileMd5"`
	ChunkID     int    `gorm:"not null;column:chunk_id" json:"chunkId"`
	TextContent string `gorm:"type:text;column:text_content" json:"textContent"`
	// Metadata 是展示给模型的来源标注，例如 "手册.pdf#3"。
	Metadata string `gorm:"type:varchar(255);column:metadata" json:"metadata"`
}

func (DocumentChunk) TableName() string {
	return "document_chunks"
}
