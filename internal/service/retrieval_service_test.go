package service

import (
	"context"
	"errors"
	"testing"

	"camaral-smart-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetrieveJoinsHitsWithMetadata(t *testing.T) {
	index := &fakeIndex{hits: []model.ChunkHit{
		{Content: "退款需在 7 天内申请。", Metadata: "faq.pdf#0", Distance: 0.35},
		{Content: "支持银行卡和支付宝。", Metadata: "", Distance: 0.62},
	}}
	svc := NewRetrievalService(&fakeEmbedder{vector: []float32{0.1, 0.2}}, index, 5, 1.0, "")

	got, err := svc.Retrieve(context.Background(), "怎么退款")

	require.NoError(t, err)
	assert.Equal(t, "[faq.pdf#0]\n退款需在 7 天内申请。\n\n---\n\n支持银行卡和支付宝。", got)
}

func TestRetrieveGuardRejectsDistantNearest(t *testing.T) {
	// 最近的分块都超过阈值，整批结果判为不可信
	index := &fakeIndex{hits: []model.ChunkHit{
		{Content: "完全不相关的内容", Metadata: "other.pdf#3", Distance: 1.42},
		{Content: "更不相关的内容", Metadata: "other.pdf#4", Distance: 1.87},
	}}
	svc := NewRetrievalService(&fakeEmbedder{vector: []float32{0.1}}, index, 5, 1.0, "")

	got, err := svc.Retrieve(context.Background(), "无关问题")

	require.NoError(t, err)
	assert.Equal(t, DefaultNoResultText, got)
}

func TestRetrieveFiltersIndividualDistantHits(t *testing.T) {
	index := &fakeIndex{hits: []model.ChunkHit{
		{Content: "相关内容", Metadata: "a.pdf#0", Distance: 0.4},
		{Content: "超出阈值的内容", Metadata: "b.pdf#1", Distance: 1.3},
		{Content: "另一段相关内容", Metadata: "a.pdf#2", Distance: 0.9},
	}}
	svc := NewRetrievalService(&fakeEmbedder{vector: []float32{0.1}}, index, 5, 1.0, "")

	got, err := svc.Retrieve(context.Background(), "问题")

	require.NoError(t, err)
	assert.Contains(t, got, "相关内容")
	assert.Contains(t, got, "另一段相关内容")
	assert.NotContains(t, got, "超出阈值的内容")
}

func TestRetrieveNoHitsReturnsSentinel(t *testing.T) {
	svc := NewRetrievalService(&fakeEmbedder{vector: []float32{0.1}}, &fakeIndex{}, 5, 1.0, "自定义的无结果提示")

	got, err := svc.Retrieve(context.Background(), "空库查询")

	require.NoError(t, err)
	assert.Equal(t, "自定义的无结果提示", got)
}

func TestRetrieveEmbeddingErrorPropagates(t *testing.T) {
	svc := NewRetrievalService(&fakeEmbedder{err: errors.New("api down")}, &fakeIndex{}, 5, 1.0, "")

	_, err := svc.Retrieve(context.Background(), "问题")

	assert.Error(t, err)
}

func TestRetrieveSearchErrorPropagates(t *testing.T) {
	index := &fakeIndex{err: errors.New("es unavailable")}
	svc := NewRetrievalService(&fakeEmbedder{vector: []float32{0.1}}, index, 5, 1.0, "")

	_, err := svc.Retrieve(context.Background(), "问题")

	assert.Error(t, err)
}
