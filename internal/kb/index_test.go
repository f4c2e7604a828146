package kb

import (
	"context"
	"errors"
	"hash/fnv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// wordHashEmbedder 是一个确定性的测试用嵌入器：
// 把文本按词切分后哈希到固定维度的词袋向量，语义相近的句子共享更多维度。
type wordHashEmbedder struct {
	failAfter int // 大于 0 时，处理超过该数量的文本后返回错误
	seen      int
}

func (e *wordHashEmbedder) CreateEmbedding(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.CreateEmbeddings(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *wordHashEmbedder) CreateEmbeddings(ctx context.Context, texts []string) ([][]float32, error) {
	const dims = 64
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		e.seen++
		if e.failAfter > 0 && e.seen > e.failAfter {
			return nil, errors.New("embedding provider unavailable")
		}
		vec := make([]float32, dims)
		for _, word := range strings.Fields(strings.ToLower(text)) {
			word = strings.Trim(word, ".,?!？。，")
			if word == "" {
				continue
			}
			h := fnv.New32a()
			_, _ = h.Write([]byte(word))
			vec[h.Sum32()%dims]++
		}
		vectors = append(vectors, vec)
	}
	return vectors, nil
}

func TestBuildAndSearch_RanksBySimilarity(t *testing.T) {
	embedder := &wordHashEmbedder{}
	chunks := []string{
		"Paris is the capital of France.",
		"Tokyo is the capital of Japan.",
		"The sky is blue.",
	}

	index, err := Build(context.Background(), embedder, chunks)
	require.NoError(t, err)
	assert.Equal(t, 3, index.Size())

	results, err := index.Search(context.Background(), "What is the capital of France?", 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Paris is the capital of France.", results[0].Text)
}

func TestSearch_ResultsDescendingAndCapped(t *testing.T) {
	embedder := &wordHashEmbedder{}
	chunks := []string{
		"Paris is the capital of France.",
		"Tokyo is the capital of Japan.",
		"The sky is blue.",
	}

	index, err := Build(context.Background(), embedder, chunks)
	require.NoError(t, err)

	results, err := index.Search(context.Background(), "capital of France", 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].Score, results[i].Score)
	}

	// k 大于分块数时返回全部
	results, err = index.Search(context.Background(), "capital", 10)
	require.NoError(t, err)
	assert.Len(t, results, 3)
}

func TestBuild_EmptyChunks(t *testing.T) {
	index, err := Build(context.Background(), &wordHashEmbedder{}, nil)
	assert.Error(t, err)
	assert.Nil(t, index)
}

func TestBuild_EmbeddingFailureAbortsWithoutPartialIndex(t *testing.T) {
	embedder := &wordHashEmbedder{failAfter: 1}
	chunks := make([]string, 0, 20)
	for i := 0; i < 20; i++ {
		chunks = append(chunks, "some content")
	}

	index, err := Build(context.Background(), embedder, chunks)
	assert.Error(t, err)
	assert.Nil(t, index)
}

func TestCosineSimilarity(t *testing.T) {
	score, err := cosineSimilarity([]float32{1, 0}, []float32{1, 0})
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-9)

	score, err = cosineSimilarity([]float32{1, 0}, []float32{0, 1})
	require.NoError(t, err)
	assert.InDelta(t, 0.0, score, 1e-9)

	// 零向量相似度为 0
	score, err = cosineSimilarity([]float32{0, 0}, []float32{1, 1})
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)

	_, err = cosineSimilarity([]float32{1}, []float32{1, 2})
	assert.Error(t, err)

	_, err = cosineSimilarity(nil, []float32{1})
	assert.Error(t, err)
}
