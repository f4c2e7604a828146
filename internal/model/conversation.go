// Package model 包含了应用的数据模型定义。
package model

import "time"

// ChatMessage 代表一条面向 prompt 的角色消息。
type ChatMessage struct {
	Role      string    `json:"role"` // "user" 或 "assistant"
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// ConversationTurn 代表一轮问答，作为结构化记录持久化在 Redis 中。
// Answer 为空表示该轮的问题已提出但回答尚未到达。
type ConversationTurn struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	AskedAt  time.Time `json:"askedAt,omitempty"`
}

// HasAnswer 判断该轮问答是否已经补上回答。
func (t ConversationTurn) HasAnswer() bool {
	return t.Answer != ""
}
