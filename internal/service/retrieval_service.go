// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"strings"

	"camaral-smart-go/internal/model"
	"camaral-smart-go/pkg/embedding"
	"camaral-smart-go/pkg/es"
	"camaral-smart-go/pkg/log"
)

// DefaultNoResultText 是检索护栏触发时返回的哨兵文本。
const DefaultNoResultText = "知识库中没有找到相关内容。"

// chunkSeparator 是拼接多个分块时使用的可见分隔符。
const chunkSeparator = "\n\n---\n\n"

// VectorIndex 抽象了向量近邻查询服务：给定查询向量与 k，
// 按 L2 距离升序返回最近的分块。生产实现基于 Elasticsearch。
type VectorIndex interface {
	Search(ctx context.Context, queryVector []float32, k int) ([]model.ChunkHit, error)
}

// RetrievalService 接口定义了带护栏的知识库检索操作。
type RetrievalService interface {
	// Retrieve 将查询向量化并检索最近的分块，返回拼接好的上下文文本。
	// 无命中、或最近分块的距离超过阈值时，返回哨兵文本而非任何分块内容，
	// 避免下游模型基于不相关的上下文编造答案。
	Retrieve(ctx context.Context, query string) (string, error)
}

type retrievalService struct {
	embeddingClient embedding.Client
	index           VectorIndex
	topK            int
	threshold       float64
	noResultText    string
}

// NewRetrievalService 创建一个新的 RetrievalService 实例。
func NewRetrievalService(embeddingClient embedding.Client, index VectorIndex, topK int, threshold float64, noResultText string) RetrievalService {
	if noResultText == "" {
		noResultText = DefaultNoResultText
	}
	return &retrievalService{
		embeddingClient: embeddingClient,
		index:           index,
		topK:            topK,
		threshold:       threshold,
		noResultText:    noResultText,
	}
}

// Retrieve 执行 embed -> kNN -> 护栏过滤 -> 拼接 的完整检索流程。
func (s *retrievalService) Retrieve(ctx context.Context, query string) (string, error) {
	queryVector, err := s.embeddingClient.CreateEmbedding(ctx, query)
	if err != nil {
		return "", fmt.Errorf("failed to create query embedding: %w", err)
	}

	hits, err := s.index.Search(ctx, queryVector, s.topK)
	if err != nil {
		return "", fmt.Errorf("vector search failed: %w", err)
	}

	if len(hits) == 0 {
		log.Infof("[RetrievalService] 检索无命中, query: '%s'", query)
		return s.noResultText, nil
	}

	// 护栏：最近的分块都不够近，则整体判定为不可信，不返回任何分块
	if hits[0].Distance > s.threshold {
		log.Infof("[RetrievalService] 最近分块距离 %.4f 超过阈值 %.4f，触发护栏", hits[0].Distance, s.threshold)
		return s.noResultText, nil
	}

	// 逐条过滤：top_k 命中中仍可能有距离超过阈值的分块
	parts := make([]string, 0, len(hits))
	for _, hit := range hits {
		if hit.Distance > s.threshold {
			continue
		}
		if hit.Metadata != "" {
			parts = append(parts, fmt.Sprintf("[%s]\n%s", hit.Metadata, hit.Content))
		} else {
			parts = append(parts, hit.Content)
		}
	}
	if len(parts) == 0 {
		return s.noResultText, nil
	}

	return strings.Join(parts, chunkSeparator), nil
}

// esVectorIndex 是 VectorIndex 的 Elasticsearch 实现。
type esVectorIndex struct {
	indexName string
}

// NewESVectorIndex 创建一个基于 Elasticsearch 知识库索引的 VectorIndex。
func NewESVectorIndex(indexName string) VectorIndex {
	return &esVectorIndex{indexName: indexName}
}

func (i *esVectorIndex) Search(ctx context.Context, queryVector []float32, k int) ([]model.ChunkHit, error) {
	return es.KnnSearch(ctx, i.indexName, queryVector, k)
}
