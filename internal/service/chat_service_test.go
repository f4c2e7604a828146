package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"kb-assist-go/internal/kb"
	"kb-assist-go/internal/model"
	"kb-assist-go/pkg/llm"
	"kb-assist-go/pkg/tasks"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKnowledgeBaseService 是 KnowledgeBaseService 的可编程替身。
type fakeKnowledgeBaseService struct {
	hasIndex      bool
	buildCalls    int
	buildErr      error
	searchResults []kb.ScoredChunk
	searchErr     error
}

func (f *fakeKnowledgeBaseService) LoadDocuments(ctx context.Context, userID uint) ([]model.Document, error) {
	return nil, nil
}

func (f *fakeKnowledgeBaseService) Ingest(ctx context.Context, filePaths []string, userID uint) (int, error) {
	return 0, nil
}

func (f *fakeKnowledgeBaseService) BuildIndex(ctx context.Context, userID uint) error {
	f.buildCalls++
	if f.buildErr != nil {
		return f.buildErr
	}
	f.hasIndex = true
	return nil
}

func (f *fakeKnowledgeBaseService) Search(ctx context.Context, userID uint, query string, k int) ([]kb.ScoredChunk, error) {
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	if len(f.searchResults) > k {
		return f.searchResults[:k], nil
	}
	return f.searchResults, nil
}

func (f *fakeKnowledgeBaseService) HasIndex(userID uint) bool {
	return f.hasIndex
}

func (f *fakeKnowledgeBaseService) Process(ctx context.Context, task tasks.IndexRebuildTask) error {
	return f.BuildIndex(ctx, task.UserID)
}

// recordingConversationService 记录写入的消息。
type recordingConversationService struct {
	history []model.ChatMessage
	added   []model.ChatMessage
	addErr  error
}

func (f *recordingConversationService) GetHistory(ctx context.Context, userID uint) ([]model.ChatMessage, error) {
	return f.history, nil
}

func (f *recordingConversationService) AddMessage(ctx context.Context, userID uint, message model.ChatMessage) error {
	if f.addErr != nil {
		return f.addErr
	}
	f.added = append(f.added, message)
	return nil
}

func (f *recordingConversationService) Clear(ctx context.Context, userID uint) error {
	f.history = nil
	f.added = nil
	return nil
}

// fakeLLMClient 返回固定答案并记录收到的消息序列。
type fakeLLMClient struct {
	response string
	err      error
	got      []llm.Message
}

func (f *fakeLLMClient) ChatCompletion(ctx context.Context, messages []llm.Message) (string, error) {
	f.got = messages
	if f.err != nil {
		return "", f.err
	}
	return f.response, nil
}

func testUser() *model.User {
	return &model.User{ID: 1, Username: "alice"}
}

func TestAnswer_Success(t *testing.T) {
	kbSvc := &fakeKnowledgeBaseService{
		hasIndex: true,
		searchResults: []kb.ScoredChunk{
			{Text: "Paris is the capital of France.", Score: 0.9},
			{Text: "Tokyo is the capital of Japan.", Score: 0.3},
		},
	}
	convSvc := &recordingConversationService{}
	llmClient := &fakeLLMClient{response: "巴黎是法国的首都。"}
	svc := NewChatService(kbSvc, convSvc, llmClient, 3)

	answer, err := svc.Answer(context.Background(), testUser(), "法国的首都是哪里？")
	require.NoError(t, err)
	assert.Equal(t, "巴黎是法国的首都。", answer)

	// 索引已就绪时不触发重建
	assert.Zero(t, kbSvc.buildCalls)

	// prompt 以系统指令开头，末尾用户轮次携带检索上下文和原始问题
	require.NotEmpty(t, llmClient.got)
	assert.Equal(t, "system", llmClient.got[0].Role)
	last := llmClient.got[len(llmClient.got)-1]
	assert.Equal(t, "user", last.Role)
	assert.True(t, strings.HasPrefix(last.Content, "已知信息："))
	assert.Contains(t, last.Content, "Paris is the capital of France.")
	assert.Contains(t, last.Content, "问题：法国的首都是哪里？")

	// 成功后写入历史：先问题，后回答
	require.Len(t, convSvc.added, 2)
	assert.Equal(t, RoleUser, convSvc.added[0].Role)
	assert.Equal(t, "法国的首都是哪里？", convSvc.added[0].Content)
	assert.Equal(t, RoleAssistant, convSvc.added[1].Role)
	assert.Equal(t, "巴黎是法国的首都。", convSvc.added[1].Content)
}

func TestAnswer_BuildsIndexLazily(t *testing.T) {
	kbSvc := &fakeKnowledgeBaseService{
		searchResults: []kb.ScoredChunk{{Text: "some content", Score: 0.5}},
	}
	convSvc := &recordingConversationService{}
	svc := NewChatService(kbSvc, convSvc, &fakeLLMClient{response: "回答"}, 3)

	_, err := svc.Answer(context.Background(), testUser(), "问题")
	require.NoError(t, err)
	assert.Equal(t, 1, kbSvc.buildCalls)
}

func TestAnswer_EmptyCorpusPropagates(t *testing.T) {
	kbSvc := &fakeKnowledgeBaseService{buildErr: ErrEmptyCorpus}
	convSvc := &recordingConversationService{}
	llmClient := &fakeLLMClient{response: "不应被调用"}
	svc := NewChatService(kbSvc, convSvc, llmClient, 3)

	_, err := svc.Answer(context.Background(), testUser(), "问题")
	assert.ErrorIs(t, err, ErrEmptyCorpus)
	assert.Nil(t, llmClient.got)
	assert.Empty(t, convSvc.added)
}

func TestAnswer_CompletionFailureLeavesHistoryUntouched(t *testing.T) {
	kbSvc := &fakeKnowledgeBaseService{
		hasIndex:      true,
		searchResults: []kb.ScoredChunk{{Text: "some content", Score: 0.5}},
	}
	convSvc := &recordingConversationService{}
	svc := NewChatService(kbSvc, convSvc, &fakeLLMClient{err: errors.New("provider timeout")}, 3)

	_, err := svc.Answer(context.Background(), testUser(), "问题")
	require.Error(t, err)
	assert.Empty(t, convSvc.added)
}

func TestAnswer_HistoryIncludedInPrompt(t *testing.T) {
	kbSvc := &fakeKnowledgeBaseService{
		hasIndex:      true,
		searchResults: []kb.ScoredChunk{{Text: "some content", Score: 0.5}},
	}
	convSvc := &recordingConversationService{history: []model.ChatMessage{
		{Role: RoleUser, Content: "之前的问题"},
		{Role: RoleAssistant, Content: "之前的回答"},
	}}
	llmClient := &fakeLLMClient{response: "回答"}
	svc := NewChatService(kbSvc, convSvc, llmClient, 3)

	_, err := svc.Answer(context.Background(), testUser(), "新问题")
	require.NoError(t, err)

	require.Len(t, llmClient.got, 4) // system + 两条历史 + 用户轮次
	assert.Equal(t, "之前的问题", llmClient.got[1].Content)
	assert.Equal(t, "之前的回答", llmClient.got[2].Content)
}

func TestAnswer_TopKLimitsRetrievedChunks(t *testing.T) {
	kbSvc := &fakeKnowledgeBaseService{
		hasIndex: true,
		searchResults: []kb.ScoredChunk{
			{Text: "chunk a", Score: 0.9},
			{Text: "chunk b", Score: 0.8},
			{Text: "chunk c", Score: 0.7},
		},
	}
	convSvc := &recordingConversationService{}
	llmClient := &fakeLLMClient{response: "回答"}
	svc := NewChatService(kbSvc, convSvc, llmClient, 2)

	_, err := svc.Answer(context.Background(), testUser(), "问题")
	require.NoError(t, err)

	last := llmClient.got[len(llmClient.got)-1]
	assert.Contains(t, last.Content, "chunk a")
	assert.Contains(t, last.Content, "chunk b")
	assert.NotContains(t, last.Content, "chunk c")
}
