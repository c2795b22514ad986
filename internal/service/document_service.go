package service

import (
	"bytes"
	"context"
	"crypto/md5"
	"fmt"
	"io"

	"camaral-smart-go/internal/config"
	"camaral-smart-go/internal/model"
	"camaral-smart-go/internal/repository"
	"camaral-smart-go/pkg/es"
	"camaral-smart-go/pkg/kafka"
	"camaral-smart-go/pkg/log"
	"camaral-smart-go/pkg/storage"
	"camaral-smart-go/pkg/tasks"

	"github.com/minio/minio-go/v7"
)

// DocumentInfo 是文档列表接口返回的条目：文档记录加上当前摄取状态。
type DocumentInfo struct {
	model.Document
	Status string `json:"status"`
}

// DocumentService 定义了知识库源文件管理的接口。
// 摄取本身是离线任务：上传只负责把文件放进对象存储并投递 Kafka 任务，
// 不在聊天关键路径上。
type DocumentService interface {
	Upload(ctx context.Context, fileName string, reader io.Reader) (*model.Document, error)
	List(ctx context.Context) ([]DocumentInfo, error)
	Delete(ctx context.Context, id uint) error
}

type documentService struct {
	docRepo   repository.DocumentRepository
	chunkRepo repository.ChunkRepository
	minioCfg  config.MinIOConfig
	esCfg     config.ElasticsearchConfig
}

// NewDocumentService 创建一个新的 DocumentService 实例。
func NewDocumentService(
	docRepo repository.DocumentRepository,
	chunkRepo repository.ChunkRepository,
	minioCfg config.MinIOConfig,
	esCfg config.ElasticsearchConfig,
) DocumentService {
	return &documentService{
		docRepo:   docRepo,
		chunkRepo: chunkRepo,
		minioCfg:  minioCfg,
		esCfg:     esCfg,
	}
}

// ObjectName 返回源文件在对象存储中的键。
func ObjectName(fileMD5 string) string {
	return fmt.Sprintf("documents/%s", fileMD5)
}

// Upload 接收一个知识库源文件：写入 MinIO、登记 documents 表、投递摄取任务。
// 相同内容（MD5 一致）的文件重复上传时幂等地复用既有记录并重新触发摄取。
func (s *documentService) Upload(ctx context.Context, fileName string, reader io.Reader) (*model.Document, error) {
	buf := new(bytes.Buffer)
	size, err := buf.ReadFrom(reader)
	if err != nil {
		return nil, fmt.Errorf("读取上传内容失败: %w", err)
	}
	if size == 0 {
		return nil, fmt.Errorf("上传内容为空")
	}
	fileMD5 := fmt.Sprintf("%x", md5.Sum(buf.Bytes()))

	doc, err := s.docRepo.FindByMD5(fileMD5)
	if err != nil {
		return nil, fmt.Errorf("查询文档记录失败: %w", err)
	}
	if doc == nil {
		doc = &model.Document{
			FileMD5:  fileMD5,
			FileName: fileName,
			FileSize: size,
		}
		if err := s.docRepo.Create(doc); err != nil {
			return nil, fmt.Errorf("创建文档记录失败: %w", err)
		}
	} else {
		log.Infof("[DocumentService] 文件已存在，重新触发摄取: %s (md5=%s)", fileName, fileMD5)
	}

	objectName := ObjectName(fileMD5)
	_, err = storage.MinioClient.PutObject(ctx, s.minioCfg.BucketName, objectName,
		bytes.NewReader(buf.Bytes()), size, minio.PutObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("写入对象存储失败: %w", err)
	}

	if err := s.docRepo.SetIngestStatus(ctx, fileMD5, model.IngestStatusPending); err != nil {
		log.Warnf("[DocumentService] 设置摄取状态失败 (md5=%s): %v", fileMD5, err)
	}

	task := tasks.DocumentIngestTask{FileMD5: fileMD5, FileName: doc.FileName}
	if err := kafka.ProduceIngestTask(task); err != nil {
		return nil, fmt.Errorf("投递摄取任务失败: %w", err)
	}

	log.Infof("[DocumentService] 已接收文件并投递摄取任务: %s (md5=%s, size=%d)", fileName, fileMD5, size)
	return doc, nil
}

// List 返回全部源文件记录及其摄取状态。
func (s *documentService) List(ctx context.Context) ([]DocumentInfo, error) {
	docs, err := s.docRepo.FindAll()
	if err != nil {
		return nil, fmt.Errorf("查询文档列表失败: %w", err)
	}

	infos := make([]DocumentInfo, 0, len(docs))
	for _, doc := range docs {
		status, err := s.docRepo.GetIngestStatus(ctx, doc.FileMD5)
		if err != nil {
			log.Warnf("[DocumentService] 查询摄取状态失败 (md5=%s): %v", doc.FileMD5, err)
			status = ""
		}
		infos = append(infos, DocumentInfo{Document: doc, Status: status})
	}
	return infos, nil
}

// Delete 级联清理一个源文件：索引分块、分块表、对象存储、文档记录。
func (s *documentService) Delete(ctx context.Context, id uint) error {
	doc, err := s.docRepo.FindByID(id)
	if err != nil {
		return fmt.Errorf("查询文档记录失败: %w", err)
	}

	if err := es.DeleteByFileMD5(ctx, s.esCfg.IndexName, doc.FileMD5); err != nil {
		return fmt.Errorf("删除索引分块失败: %w", err)
	}
	if err := s.chunkRepo.DeleteByFileMD5(doc.FileMD5); err != nil {
		return fmt.Errorf("删除分块记录失败: %w", err)
	}
	if err := storage.MinioClient.RemoveObject(ctx, s.minioCfg.BucketName, ObjectName(doc.FileMD5), minio.RemoveObjectOptions{}); err != nil {
		log.Warnf("[DocumentService] 删除对象存储文件失败 (md5=%s): %v", doc.FileMD5, err)
	}
	if err := s.docRepo.Delete(doc.ID); err != nil {
		return fmt.Errorf("删除文档记录失败: %w", err)
	}

	log.Infof("[DocumentService] 已删除文档及其索引: %s (md5=%s)", doc.FileName, doc.FileMD5)
	return nil
}
