// Package pipeline 定义了知识库文档摄取的核心流程。
package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"

	"camaral-smart-go/internal/config"
	"camaral-smart-go/internal/model"
	"camaral-smart-go/internal/repository"
	"camaral-smart-go/internal/service"
	"camaral-smart-go/pkg/embedding"
	"camaral-smart-go/pkg/es"
	"camaral-smart-go/pkg/log"
	"camaral-smart-go/pkg/storage"
	"camaral-smart-go/pkg/tasks"
	"camaral-smart-go/pkg/tika"

	"github.com/minio/minio-go/v7"
)

// Processor 封装了文档摄取的所有依赖和逻辑：
// 对象存储下载 -> Tika 提取文本 -> 切块 -> 落库 -> 向量化 -> 索引。
type Processor struct {
	tikaClient      *tika.Client
	embeddingClient embedding.Client
	esCfg           config.ElasticsearchConfig
	minioCfg        config.MinIOConfig
	ragCfg          config.RAGConfig
	docRepo         repository.DocumentRepository
	chunkRepo       repository.ChunkRepository
}

// NewProcessor 创建一个新的 Processor 实例。
func NewProcessor(
	tikaClient *tika.Client,
	embeddingClient embedding.Client,
	esCfg config.ElasticsearchConfig,
	minioCfg config.MinIOConfig,
	ragCfg config.RAGConfig,
	docRepo repository.DocumentRepository,
	chunkRepo repository.ChunkRepository,
) *Processor {
	return &Processor{
		tikaClient:      tikaClient,
		embeddingClient: embeddingClient,
		esCfg:           esCfg,
		minioCfg:        minioCfg,
		ragCfg:          ragCfg,
		docRepo:         docRepo,
		chunkRepo:       chunkRepo,
	}
}

// Process 是摄取任务的主函数。
func (p *Processor) Process(ctx context.Context, task tasks.DocumentIngestTask) error {
	log.Infof("[Processor] 开始处理文档, FileMD5: %s, FileName: %s", task.FileMD5, task.FileName)
	_ = p.docRepo.SetIngestStatus(ctx, task.FileMD5, model.IngestStatusProcessing)

	if err := p.process(ctx, task); err != nil {
		_ = p.docRepo.SetIngestStatus(ctx, task.FileMD5, model.IngestStatusFailed)
		return err
	}

	_ = p.docRepo.SetIngestStatus(ctx, task.FileMD5, model.IngestStatusCompleted)
	return nil
}

func (p *Processor) process(ctx context.Context, task tasks.DocumentIngestTask) error {
	// 1. 从 MinIO 下载文件
	objectName := service.ObjectName(task.FileMD5)
	object, err := storage.MinioClient.GetObject(ctx, p.minioCfg.BucketName, objectName, minio.GetObjectOptions{})
	if err != nil {
		return fmt.Errorf("从 MinIO 下载文件失败: %w", err)
	}
	defer object.Close()

	buf := new(bytes.Buffer)
	size, err := buf.ReadFrom(object)
	if err != nil {
		return fmt.Errorf("读取 MinIO 对象流失败: %w", err)
	}
	if size == 0 {
		return errors.New("文件内容为空")
	}

	// 2. 使用 Tika 提取文本
	textContent, err := p.tikaClient.ExtractText(bytes.NewReader(buf.Bytes()), task.FileName)
	if err != nil {
		return fmt.Errorf("使用 Tika 提取文本失败: %w", err)
	}
	if textContent == "" {
		return errors.New("提取的文本内容为空")
	}

	// 3. 文本切块
	chunks := SplitText(textContent, p.ragCfg.ChunkSize, p.ragCfg.ChunkOverlap)
	log.Infof("[Processor] 文本分块完成, 共生成 %d 个分块", len(chunks))
	if len(chunks) == 0 {
		return errors.New("未生成任何文本分块")
	}

	// 阶段一：将分块文本存入数据库。
	// 处理前先清理该文件既有的分块记录，保证重复摄取幂等。
	if err := p.chunkRepo.DeleteByFileMD5(task.FileMD5); err != nil {
		log.Warnf("[Processor] 清理 document_chunks 旧记录失败 (file_md5=%s): %v", task.FileMD5, err)
	}
	dbChunks := make([]*model.DocumentChunk, 0, len(chunks))
	for i, chunk := range chunks {
		dbChunks = append(dbChunks, &model.DocumentChunk{
			FileMD5:     task.FileMD5,
			ChunkID:     i,
			TextContent: chunk,
			Metadata:    fmt.Sprintf("%s#%d", task.FileName, i),
		})
	}
	if err := p.chunkRepo.BatchCreate(dbChunks); err != nil {
		return fmt.Errorf("批量保存文本分块失败: %w", err)
	}

	// 阶段二：从数据库读取分块，向量化后索引到 ES
	savedChunks, err := p.chunkRepo.FindByFileMD5(task.FileMD5)
	if err != nil {
		return fmt.Errorf("从数据库读取分块失败: %w", err)
	}

	for i, chunk := range savedChunks {
		vector, err := p.embeddingClient.CreateEmbedding(ctx, chunk.TextContent)
		if err != nil {
			return fmt.Errorf("分块 %d 向量化失败: %w", chunk.ChunkID, err)
		}

		esDoc := model.EsChunk{
			ChunkKey:    fmt.Sprintf("%s_%d", chunk.FileMD5, chunk.ChunkID),
			FileMD5:     chunk.FileMD5,
			ChunkID:     chunk.ChunkID,
			TextContent: chunk.TextContent,
			Metadata:    chunk.Metadata,
			Vector:      vector,
		}
		if err := es.IndexChunk(ctx, p.esCfg.IndexName, esDoc); err != nil {
			return fmt.Errorf("分块 %d 索引失败: %w", chunk.ChunkID, err)
		}

		if (i+1)%10 == 0 {
			log.Infof("[Processor] 已索引 %d/%d 个分块, FileMD5: %s", i+1, len(savedChunks), task.FileMD5)
		}
	}

	log.Infof("[Processor] 文档摄取完成, FileMD5: %s, 分块数: %d", task.FileMD5, len(savedChunks))
	return nil
}

// SplitText 按 rune 将文本切成带重叠的分块。
// overlap 不合法（负数或不小于 chunkSize）时按 0 处理。
func SplitText(text string, chunkSize, chunkOverlap int) []string {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if chunkOverlap < 0 || chunkOverlap >= chunkSize {
		chunkOverlap = 0
	}

	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	step := chunkSize - chunkOverlap
	chunks := make([]string, 0, len(runes)/step+1)
	for start := 0; start < len(runes); start += step {
		end := start + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, string(runes[start:end]))
		if end == len(runes) {
			break
		}
	}
	return chunks
}
