// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"kb-assist-go/internal/config"
	"kb-assist-go/internal/kb"
	"kb-assist-go/internal/model"
	"kb-assist-go/pkg/llm"
	"kb-assist-go/pkg/log"
)

// defaultSystemPrompt 是未配置时使用的系统指令。
const defaultSystemPrompt = "你是一个知识库助手，基于提供的内容回答问题。"

// ChatService 定义了问答编排的接口：
// 确保索引就绪、检索上下文、合并对话历史、调用补全并持久化新轮次。
type ChatService interface {
	Answer(ctx context.Context, user *model.User, question string) (string, error)
}

type chatService struct {
	kbService           KnowledgeBaseService
	conversationService ConversationService
	llmClient           llm.Client
	topK                int
}

// NewChatService 创建一个新的 ChatService 实例。
func NewChatService(kbService KnowledgeBaseService, conversationService ConversationService, llmClient llm.Client, topK int) ChatService {
	if topK <= 0 {
		topK = 3
	}
	return &chatService{
		kbService:           kbService,
		conversationService: conversationService,
		llmClient:           llmClient,
		topK:                topK,
	}
}

// Answer 编排完整的 RAG 问答流程。
// 补全调用成功之前不写入任何历史，失败的调用不会在历史里留下孤儿问题。
func (s *chatService) Answer(ctx context.Context, user *model.User, question string) (string, error) {
	log.Infof("[ChatService] 收到提问, userID: %d, question: %s", user.ID, question)

	// 1. 索引不存在时同步构建一次（语料为空则以 ErrEmptyCorpus 失败）
	if !s.kbService.HasIndex(user.ID) {
		log.Infof("[ChatService] 索引尚未就绪, 同步构建, userID: %d", user.ID)
		if err := s.kbService.BuildIndex(ctx, user.ID); err != nil {
			return "", err
		}
	}

	// 2. 检索 top-k 相关分块
	results, err := s.kbService.Search(ctx, user.ID, question, s.topK)
	if err != nil {
		return "", fmt.Errorf("检索相关内容失败: %w", err)
	}

	// 3. 加载对话历史
	history, err := s.conversationService.GetHistory(ctx, user.ID)
	if err != nil {
		log.Errorf("[ChatService] 加载对话历史失败, userID: %d, error: %v", user.ID, err)
		history = []model.ChatMessage{}
	}

	// 4. 组装 prompt：系统指令 + 历史消息 + 携带检索上下文的用户轮次
	messages := s.composeMessages(history, results, question)

	// 5. 调用补全能力
	answer, err := s.llmClient.ChatCompletion(ctx, messages)
	if err != nil {
		return "", fmt.Errorf("调用补全服务失败: %w", err)
	}

	// 6. 补全成功后才写入历史：先问题，后回答
	now := time.Now()
	if err := s.conversationService.AddMessage(ctx, user.ID, model.ChatMessage{Role: RoleUser, Content: question, Timestamp: now}); err != nil {
		log.Errorf("[ChatService] 保存问题到历史失败, userID: %d, error: %v", user.ID, err)
	} else if err := s.conversationService.AddMessage(ctx, user.ID, model.ChatMessage{Role: RoleAssistant, Content: answer}); err != nil {
		log.Errorf("[ChatService] 保存回答到历史失败, userID: %d, error: %v", user.ID, err)
	}

	return answer, nil
}

// composeMessages 组装发送给 LLM 的完整消息序列。
func (s *chatService) composeMessages(history []model.ChatMessage, results []kb.ScoredChunk, question string) []llm.Message {
	systemPrompt := config.Conf.LLM.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	msgs := make([]llm.Message, 0, len(history)+2)
	msgs = append(msgs, llm.Message{Role: "system", Content: systemPrompt})
	for _, m := range history {
		msgs = append(msgs, llm.Message{Role: m.Role, Content: m.Content})
	}

	var contextBuilder strings.Builder
	for _, r := range results {
		contextBuilder.WriteString(r.Text)
		contextBuilder.WriteString("\n")
	}
	userContent := fmt.Sprintf("已知信息：%s\n\n问题：%s", strings.TrimRight(contextBuilder.String(), "\n"), question)
	msgs = append(msgs, llm.Message{Role: "user", Content: userContent})
	return msgs
}
