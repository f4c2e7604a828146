package kb

import (
	"context"
	"fmt"
	"math"
	"sort"

	"kb-assist-go/pkg/embedding"
	"kb-assist-go/pkg/log"
)

// embedBatchSize 是一次 Embedding API 调用携带的分块数量上限。
const embedBatchSize = 16

// ScoredChunk 是一次检索命中的分块文本及其相似度得分。
type ScoredChunk struct {
	Text  string
	Score float64
}

// indexEntry 将一个分块与它的嵌入向量绑定。
type indexEntry struct {
	text   string
	vector []float32
}

// VectorIndex 持有一个语料库全部分块的嵌入向量，支持相似度检索。
// 索引构建完成后即不可变，可被并发读取；
// 语料变更时整体重建并替换句柄，而不是原地修改。
type VectorIndex struct {
	embedder embedding.Client // 构建与查询必须使用同一个嵌入函数
	entries  []indexEntry
}

// Build 为给定的分块集合构建一个新的向量索引。
// 任何一个分块嵌入失败都会中止构建，不保留半成品索引。
func Build(ctx context.Context, embedder embedding.Client, chunks []string) (*VectorIndex, error) {
	if len(chunks) == 0 {
		return nil, fmt.Errorf("no chunks to index")
	}

	entries := make([]indexEntry, 0, len(chunks))
	for start := 0; start < len(chunks); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(chunks) {
			end = len(chunks)
		}
		batch := chunks[start:end]
		vectors, err := embedder.CreateEmbeddings(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("分块向量化失败 (batch %d-%d): %w", start, end, err)
		}
		for i, vec := range vectors {
			entries = append(entries, indexEntry{text: batch[i], vector: vec})
		}
	}

	log.Infof("[VectorIndex] 索引构建完成, 分块数: %d", len(entries))
	return &VectorIndex{embedder: embedder, entries: entries}, nil
}

// Size 返回索引中的分块数量。
func (idx *VectorIndex) Size() int {
	return len(idx.entries)
}

// Search 将查询向量化后做最近邻检索，按相似度降序返回至多 k 条结果。
func (idx *VectorIndex) Search(ctx context.Context, query string, k int) ([]ScoredChunk, error) {
	if k <= 0 {
		return nil, fmt.Errorf("invalid top-k: %d", k)
	}

	queryVector, err := idx.embedder.CreateEmbedding(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("查询向量化失败: %w", err)
	}

	scored := make([]ScoredChunk, 0, len(idx.entries))
	for _, entry := range idx.entries {
		score, err := cosineSimilarity(queryVector, entry.vector)
		if err != nil {
			return nil, fmt.Errorf("计算相似度失败: %w", err)
		}
		scored = append(scored, ScoredChunk{Text: entry.text, Score: score})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

// cosineSimilarity 计算两个向量的余弦相似度。
func cosineSimilarity(a, b []float32) (float64, error) {
	if len(a) == 0 || len(b) == 0 {
		return 0, fmt.Errorf("vectors cannot be empty")
	}
	if len(a) != len(b) {
		return 0, fmt.Errorf("vectors must have the same dimension: %d != %d", len(a), len(b))
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0, nil
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB)), nil
}
