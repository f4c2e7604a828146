package service

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"kb-assist-go/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeConversationRepository 是 ConversationRepository 的内存实现。
// 并发测试也使用它，因此内部加锁。
type fakeConversationRepository struct {
	mu    sync.Mutex
	turns map[uint][]model.ConversationTurn
}

func newFakeConversationRepository() *fakeConversationRepository {
	return &fakeConversationRepository{turns: make(map[uint][]model.ConversationTurn)}
}

func (r *fakeConversationRepository) GetTurns(ctx context.Context, userID uint) ([]model.ConversationTurn, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]model.ConversationTurn{}, r.turns[userID]...), nil
}

func (r *fakeConversationRepository) SaveTurns(ctx context.Context, userID uint, turns []model.ConversationTurn) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.turns[userID] = turns
	return nil
}

func (r *fakeConversationRepository) Clear(ctx context.Context, userID uint) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.turns, userID)
	return nil
}

func TestAddMessage_QuestionThenAnswerFormsOneTurn(t *testing.T) {
	repo := newFakeConversationRepository()
	svc := NewConversationService(repo)
	ctx := context.Background()

	askedAt := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, svc.AddMessage(ctx, 1, model.ChatMessage{Role: RoleUser, Content: "巴黎是哪个国家的首都？", Timestamp: askedAt}))
	require.NoError(t, svc.AddMessage(ctx, 1, model.ChatMessage{Role: RoleAssistant, Content: "巴黎是法国的首都。"}))

	require.Len(t, repo.turns[1], 1)
	turn := repo.turns[1][0]
	assert.Equal(t, "巴黎是哪个国家的首都？", turn.Question)
	assert.Equal(t, "巴黎是法国的首都。", turn.Answer)
	assert.Equal(t, askedAt, turn.AskedAt)

	history, err := svc.GetHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, RoleUser, history[0].Role)
	assert.Equal(t, "巴黎是哪个国家的首都？", history[0].Content)
	assert.Equal(t, RoleAssistant, history[1].Role)
	assert.Equal(t, "巴黎是法国的首都。", history[1].Content)
}

func TestAddMessage_AnswerWithoutPendingQuestion(t *testing.T) {
	repo := newFakeConversationRepository()
	svc := NewConversationService(repo)
	ctx := context.Background()

	require.NoError(t, svc.AddMessage(ctx, 1, model.ChatMessage{Role: RoleAssistant, Content: "无对应问题的回答"}))

	require.Len(t, repo.turns[1], 1)
	assert.Empty(t, repo.turns[1][0].Question)
	assert.Equal(t, "无对应问题的回答", repo.turns[1][0].Answer)

	history, err := svc.GetHistory(ctx, 1)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, RoleAssistant, history[0].Role)
}

func TestAddMessage_AnswerAttachesToLatestOpenTurn(t *testing.T) {
	repo := newFakeConversationRepository()
	svc := NewConversationService(repo)
	ctx := context.Background()

	require.NoError(t, svc.AddMessage(ctx, 1, model.ChatMessage{Role: RoleUser, Content: "第一个问题"}))
	require.NoError(t, svc.AddMessage(ctx, 1, model.ChatMessage{Role: RoleUser, Content: "第二个问题"}))
	require.NoError(t, svc.AddMessage(ctx, 1, model.ChatMessage{Role: RoleAssistant, Content: "针对第二个问题的回答"}))

	require.Len(t, repo.turns[1], 2)
	assert.Equal(t, "第一个问题", repo.turns[1][0].Question)
	assert.Empty(t, repo.turns[1][0].Answer)
	assert.Equal(t, "第二个问题", repo.turns[1][1].Question)
	assert.Equal(t, "针对第二个问题的回答", repo.turns[1][1].Answer)
}

func TestAddMessage_UserMessageWithoutTimestampGetsOne(t *testing.T) {
	repo := newFakeConversationRepository()
	svc := NewConversationService(repo)

	require.NoError(t, svc.AddMessage(context.Background(), 1, model.ChatMessage{Role: RoleUser, Content: "问题"}))
	require.Len(t, repo.turns[1], 1)
	assert.False(t, repo.turns[1][0].AskedAt.IsZero())
}

func TestGetHistory_EmptyForNewUser(t *testing.T) {
	svc := NewConversationService(newFakeConversationRepository())

	history, err := svc.GetHistory(context.Background(), 42)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestClear_RemovesHistory(t *testing.T) {
	repo := newFakeConversationRepository()
	svc := NewConversationService(repo)
	ctx := context.Background()

	require.NoError(t, svc.AddMessage(ctx, 1, model.ChatMessage{Role: RoleUser, Content: "问题"}))
	require.NoError(t, svc.Clear(ctx, 1))

	history, err := svc.GetHistory(ctx, 1)
	require.NoError(t, err)
	assert.Empty(t, history)

	// 其他用户不受影响
	require.NoError(t, svc.AddMessage(ctx, 2, model.ChatMessage{Role: RoleUser, Content: "另一个用户的问题"}))
	require.NoError(t, svc.Clear(ctx, 1))
	assert.Len(t, repo.turns[2], 1)
}

func TestAddMessage_ConcurrentPairsLoseNothing(t *testing.T) {
	repo := newFakeConversationRepository()
	svc := NewConversationService(repo)
	ctx := context.Background()

	// 同一用户的多个并发请求各写入一问一答，
	// 读-改-写被串行化后每条消息都要落盘，不允许互相覆盖
	const pairs = 16
	var wg sync.WaitGroup
	errCh := make(chan error, pairs*2)
	for g := 0; g < pairs; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			if err := svc.AddMessage(ctx, 1, model.ChatMessage{Role: RoleUser, Content: fmt.Sprintf("问题 %d", g)}); err != nil {
				errCh <- err
			}
			if err := svc.AddMessage(ctx, 1, model.ChatMessage{Role: RoleAssistant, Content: fmt.Sprintf("回答 %d", g)}); err != nil {
				errCh <- err
			}
		}(g)
	}

	wg.Wait()
	close(errCh)
	for err := range errCh {
		t.Error(err)
	}

	questions, answers := 0, 0
	for _, turn := range repo.turns[1] {
		if turn.Question != "" {
			questions++
		}
		if turn.Answer != "" {
			answers++
		}
	}
	assert.Equal(t, pairs, questions)
	assert.Equal(t, pairs, answers)
}
