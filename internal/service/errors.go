// Package service 包含了应用的业务逻辑层。
package service

import "errors"

var (
	// ErrEmptyCorpus 表示用户语料分块后没有任何可嵌入的内容，索引构建被中止。
	ErrEmptyCorpus = errors.New("文档内容为空，无法创建嵌入向量")

	// ErrIndexNotReady 表示该用户尚未构建过向量索引。
	ErrIndexNotReady = errors.New("知识库索引尚未构建")
)
