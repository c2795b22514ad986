package repository

import (
	"camaral-smart-go/internal/model"

	"gorm.io/gorm"
)

// ChunkRepository 定义了对 document_chunks 表的数据操作接口。
type ChunkRepository interface {
	BatchCreate(chunks []*model.DocumentChunk) error
	FindByFileMD5(fileMD5 string) ([]*model.DocumentChunk, error)
	DeleteByFileMD5(fileMD5 string) error
}

type chunkRepository struct {
	db *gorm.DB
}

// NewChunkRepository 创建一个新的 ChunkRepository 实例。
func NewChunkRepository(db *gorm.DB) ChunkRepository {
	return &chunkRepository{db: db}
}

// BatchCreate 批量创建分块记录。
func (r *chunkRepository) BatchCreate(chunks []*model.DocumentChunk) error {
	if len(chunks) == 0 {
		return nil
	}
	return r.db.CreateInBatches(chunks, 100).Error // 每100条记录一批
}

// FindByFileMD5 根据文件MD5查找所有相关的分块记录。
func (r *chunkRepository) FindByFileMD5(fileMD5 string) ([]*model.DocumentChunk, error) {
	var chunks []*model.DocumentChunk
	err := r.db.Where("file_md5 = ?", fileMD5).Order("chunk_id ASC").Find(&chunks).Error
	return chunks, err
}

// DeleteByFileMD5 根据文件MD5删除所有相关的分块记录。
func (r *chunkRepository) DeleteByFileMD5(fileMD5 string) error {
	return r.db.Where("file_md5 = ?", fileMD5).Delete(&model.DocumentChunk{}).Error
}
