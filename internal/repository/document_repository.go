package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"camaral-smart-go/internal/model"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// DocumentRepository 定义了知识库源文件记录的操作接口。
// 摄取状态存放在 Redis 中，随状态机 pending -> processing -> completed/failed 推进。
type DocumentRepository interface {
	Create(doc *model.Document) error
	FindByMD5(fileMD5 string) (*model.Document, error)
	FindByID(id uint) (*model.Document, error)
	FindAll() ([]model.Document, error)
	Delete(id uint) error

	SetIngestStatus(ctx context.Context, fileMD5, status string) error
	GetIngestStatus(ctx context.Context, fileMD5 string) (string, error)
}

type documentRepository struct {
	db  *gorm.DB
	rdb *redis.Client
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB, rdb *redis.Client) DocumentRepository {
	return &documentRepository{db: db, rdb: rdb}
}

func (r *documentRepository) Create(doc *model.Document) error {
	return r.db.Create(doc).Error
}

func (r *documentRepository) FindByMD5(fileMD5 string) (*model.Document, error) {
	var doc model.Document
	err := r.db.Where("file_md5 = ?", fileMD5).First(&doc).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) FindByID(id uint) (*model.Document, error) {
	var doc model.Document
	err := r.db.First(&doc, id).Error
	if err != nil {
		return nil, err
	}
	return &doc, nil
}

func (r *documentRepository) FindAll() ([]model.Document, error) {
	var docs []model.Document
	err := r.db.Order("created_at DESC").Find(&docs).Error
	return docs, err
}

func (r *documentRepository) Delete(id uint) error {
	return r.db.Delete(&model.Document{}, id).Error
}

func ingestStatusKey(fileMD5 string) string {
	return fmt.Sprintf("ingest:status:%s", fileMD5)
}

// SetIngestStatus 更新文件的摄取状态。
func (r *documentRepository) SetIngestStatus(ctx context.Context, fileMD5, status string) error {
	return r.rdb.Set(ctx, ingestStatusKey(fileMD5), status, 7*24*time.Hour).Err()
}

// GetIngestStatus 查询文件的摄取状态，键不存在时返回空字符串。
func (r *documentRepository) GetIngestStatus(ctx context.Context, fileMD5 string) (string, error) {
	status, err := r.rdb.Get(ctx, ingestStatusKey(fileMD5)).Result()
	if err == redis.Nil {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return status, nil
}
