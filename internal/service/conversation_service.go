// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"sync"
	"time"

	"kb-assist-go/internal/model"
	"kb-assist-go/internal/repository"
)

// 消息角色常量。
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ConversationService 定义了对话记忆的接口。
// 它把 Redis 中的问答轮次适配为 prompt 可消费的有序角色消息，并负责追加新消息。
type ConversationService interface {
	// GetHistory 返回用户的对话历史，展开为按时间顺序排列的角色消息。
	GetHistory(ctx context.Context, userID uint) ([]model.ChatMessage, error)
	// AddMessage 将一条消息并入用户的问答轮次并整体重写持久化的历史。
	AddMessage(ctx context.Context, userID uint, message model.ChatMessage) error
	// Clear 清空用户的对话历史。
	Clear(ctx context.Context, userID uint) error
}

type conversationService struct {
	repo repository.ConversationRepository

	mu sync.Mutex // 保护 userLocks
	// userLocks 为每个用户维护一把锁，序列化历史记录的读-改-写，
	// 避免同一用户的并发请求互相覆盖丢失轮次
	userLocks map[uint]*sync.Mutex
}

// NewConversationService 创建一个新的 ConversationService。
func NewConversationService(repo repository.ConversationRepository) ConversationService {
	return &conversationService{
		repo:      repo,
		userLocks: make(map[uint]*sync.Mutex),
	}
}

func (s *conversationService) userLock(userID uint) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.userLocks[userID] = lock
	}
	return lock
}

// GetHistory 返回用户的对话历史，展开为按时间顺序排列的角色消息。
// 只有问题没有回答的轮次只产生一条 user 消息；只有回答的轮次只产生一条 assistant 消息。
func (s *conversationService) GetHistory(ctx context.Context, userID uint) ([]model.ChatMessage, error) {
	turns, err := s.repo.GetTurns(ctx, userID)
	if err != nil {
		return nil, err
	}

	messages := make([]model.ChatMessage, 0, len(turns)*2)
	for _, turn := range turns {
		if turn.Question != "" {
			messages = append(messages, model.ChatMessage{Role: RoleUser, Content: turn.Question, Timestamp: turn.AskedAt})
		}
		if turn.Answer != "" {
			messages = append(messages, model.ChatMessage{Role: RoleAssistant, Content: turn.Answer})
		}
	}
	return messages, nil
}

// AddMessage 将一条消息并入用户的问答轮次。
// user 消息开启一个新轮次；assistant 消息补全最近一个无回答的轮次，
// 若最近轮次已有回答，则追加一条只含回答的轮次。
func (s *conversationService) AddMessage(ctx context.Context, userID uint, message model.ChatMessage) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	turns, err := s.repo.GetTurns(ctx, userID)
	if err != nil {
		return err
	}

	switch message.Role {
	case RoleAssistant:
		if n := len(turns); n > 0 && turns[n-1].Question != "" && !turns[n-1].HasAnswer() {
			turns[n-1].Answer = message.Content
		} else {
			turns = append(turns, model.ConversationTurn{Answer: message.Content})
		}
	default:
		askedAt := message.Timestamp
		if askedAt.IsZero() {
			askedAt = time.Now()
		}
		turns = append(turns, model.ConversationTurn{Question: message.Content, AskedAt: askedAt})
	}

	// 每次追加都整体重写历史
	return s.repo.SaveTurns(ctx, userID, turns)
}

// Clear 清空用户的对话历史。
func (s *conversationService) Clear(ctx context.Context, userID uint) error {
	lock := s.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return s.repo.Clear(ctx, userID)
}
