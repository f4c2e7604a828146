// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"kb-assist-go/internal/config"
	"kb-assist-go/internal/kb"
	"kb-assist-go/internal/model"
	"kb-assist-go/internal/repository"
	"kb-assist-go/pkg/embedding"
	"kb-assist-go/pkg/log"
	"kb-assist-go/pkg/tasks"
)

// KnowledgeBaseService 定义了知识库管理的接口：
// 文档的加载与入库、索引的整体重建、以及对就绪索引的检索。
type KnowledgeBaseService interface {
	// LoadDocuments 优先从缓存加载用户文档，缓存不存在时从数据库分页加载并回填缓存。
	LoadDocuments(ctx context.Context, userID uint) ([]model.Document, error)
	// Ingest 解析一批文件并将文档持久化到数据库，返回入库的文档数量。
	// 单个文件解析失败只记录告警，不中止整批；持久化失败则整批回滚。
	Ingest(ctx context.Context, filePaths []string, userID uint) (int, error)
	// BuildIndex 从数据库加载用户的全部语料并整体重建向量索引。
	BuildIndex(ctx context.Context, userID uint) error
	// Search 在用户已就绪的索引上做相似度检索，按得分降序返回至多 k 条分块文本。
	Search(ctx context.Context, userID uint, query string, k int) ([]kb.ScoredChunk, error)
	// HasIndex 返回该用户是否已有就绪的索引。
	HasIndex(userID uint) bool
	// Process 实现 kafka.TaskProcessor，由后台消费者触发索引重建。
	Process(ctx context.Context, task tasks.IndexRebuildTask) error
}

// kbService 是 KnowledgeBaseService 的实现。
// 每个用户拥有独立的索引句柄；重建构造新句柄后一次性替换引用，
// 并发读取方拿到的是替换前或替换后的完整索引，不会观察到半成品。
type kbService struct {
	docRepo         repository.DocumentRepository
	embeddingClient embedding.Client
	cfg             config.KnowledgeBaseConfig

	mu      sync.RWMutex // 保护 indexes 的读写
	indexes map[uint]*kb.VectorIndex

	buildMu sync.Mutex // 保护 building
	// building 为每个用户维护一把构建锁，同一用户的重建串行执行
	building map[uint]*sync.Mutex
}

// NewKnowledgeBaseService 创建一个新的 KnowledgeBaseService 实例。
func NewKnowledgeBaseService(docRepo repository.DocumentRepository, embeddingClient embedding.Client, cfg config.KnowledgeBaseConfig) KnowledgeBaseService {
	return &kbService{
		docRepo:         docRepo,
		embeddingClient: embeddingClient,
		cfg:             cfg,
		indexes:         make(map[uint]*kb.VectorIndex),
		building:        make(map[uint]*sync.Mutex),
	}
}

// buildLock 返回指定用户的构建互斥锁。
func (s *kbService) buildLock(userID uint) *sync.Mutex {
	s.buildMu.Lock()
	defer s.buildMu.Unlock()
	lock, ok := s.building[userID]
	if !ok {
		lock = &sync.Mutex{}
		s.building[userID] = lock
	}
	return lock
}

// LoadDocuments 优先从缓存加载用户文档，缓存不存在时从数据库加载并回填缓存。
func (s *kbService) LoadDocuments(ctx context.Context, userID uint) ([]model.Document, error) {
	cached, err := s.docRepo.GetCachedDocuments(ctx, userID)
	if err != nil {
		// 缓存读取失败时回源数据库，不让缓存问题阻断加载
		log.Warnf("[KnowledgeBase] 读取文档缓存失败, userID: %d, error: %v", userID, err)
	}
	if cached != nil {
		log.Infof("[KnowledgeBase] 文档缓存命中, userID: %d, 文档数: %d", userID, len(cached))
		return cached, nil
	}

	documents, err := s.loadAllFromStore(userID)
	if err != nil {
		return nil, err
	}

	if err := s.docRepo.CacheDocuments(ctx, userID, documents); err != nil {
		log.Warnf("[KnowledgeBase] 回填文档缓存失败, userID: %d, error: %v", userID, err)
	}
	return documents, nil
}

// loadAllFromStore 从数据库分页加载用户的全部文档，直到出现空页。
func (s *kbService) loadAllFromStore(userID uint) ([]model.Document, error) {
	var all []model.Document
	offset := 0
	for {
		page, err := s.docRepo.Page(userID, s.cfg.PageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("加载用户文档失败: %w", err)
		}
		if len(page) == 0 {
			break
		}
		all = append(all, page...)
		offset += s.cfg.PageSize
	}
	return all, nil
}

// Ingest 解析一批文件并将文档持久化到数据库。
func (s *kbService) Ingest(ctx context.Context, filePaths []string, userID uint) (int, error) {
	var documents []*model.Document
	for _, path := range filePaths {
		parsed, err := kb.ParseFile(path)
		if err != nil {
			if errors.Is(err, kb.ErrUnsupportedFormat) {
				log.Warnf("[KnowledgeBase] 跳过不支持的文件: %s", path)
			} else {
				log.Warnf("[KnowledgeBase] 解析文件失败, 跳过: %s, error: %v", path, err)
			}
			continue
		}
		for i := range parsed {
			documents = append(documents, &parsed[i])
		}
	}

	if len(documents) == 0 {
		log.Warnf("[KnowledgeBase] 没有加载到任何文档, userID: %d", userID)
		return 0, nil
	}

	if err := s.docRepo.AppendBatch(documents, userID); err != nil {
		return 0, fmt.Errorf("持久化文档批次失败: %w", err)
	}
	if total, err := s.docRepo.CountByUser(userID); err != nil {
		log.Warnf("[KnowledgeBase] 统计语料数量失败, userID: %d, error: %v", userID, err)
	} else {
		log.Infof("[KnowledgeBase] 成功保存 %d 条文档到数据库, userID: %d, 已有 %d 条文档", len(documents), userID, total)
	}

	// 语料已变更，使缓存失效，下次加载时回源重建
	if err := s.docRepo.InvalidateCache(ctx, userID); err != nil {
		log.Warnf("[KnowledgeBase] 使文档缓存失效失败, userID: %d, error: %v", userID, err)
	}

	return len(documents), nil
}

// BuildIndex 从数据库加载用户的全部语料并整体重建向量索引。
// 重建直接分页读取数据库而不经过缓存，保证索引建立在权威语料之上；
// 构建失败时保留此前已就绪的索引（若有）。
func (s *kbService) BuildIndex(ctx context.Context, userID uint) error {
	lock := s.buildLock(userID)
	lock.Lock()
	defer lock.Unlock()

	log.Infof("[KnowledgeBase] 开始重建索引, userID: %d", userID)

	documents, err := s.loadAllFromStore(userID)
	if err != nil {
		return err
	}

	texts := make([]string, 0, len(documents))
	for _, doc := range documents {
		content := strings.TrimSpace(doc.Content)
		if content == "" {
			continue
		}
		texts = append(texts, content)
	}

	chunks := kb.Split(texts, s.cfg.ChunkSize, s.cfg.ChunkOverlap)
	if len(chunks) == 0 {
		log.Warnf("[KnowledgeBase] 语料分块后为空, 中止索引构建, userID: %d", userID)
		return ErrEmptyCorpus
	}

	index, err := kb.Build(ctx, s.embeddingClient, chunks)
	if err != nil {
		return fmt.Errorf("构建向量索引失败: %w", err)
	}

	// 原子替换索引句柄，并发读取方不受重建过程影响
	s.mu.Lock()
	s.indexes[userID] = index
	s.mu.Unlock()

	log.Infof("[KnowledgeBase] 索引重建完成, userID: %d, 分块数: %d", userID, index.Size())
	return nil
}

// Search 在用户已就绪的索引上做相似度检索。
func (s *kbService) Search(ctx context.Context, userID uint, query string, k int) ([]kb.ScoredChunk, error) {
	s.mu.RLock()
	index := s.indexes[userID]
	s.mu.RUnlock()

	if index == nil {
		return nil, ErrIndexNotReady
	}
	return index.Search(ctx, query, k)
}

// HasIndex 返回该用户是否已有就绪的索引。
func (s *kbService) HasIndex(userID uint) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.indexes[userID] != nil
}

// Process 实现 kafka.TaskProcessor，由后台消费者触发索引重建。
func (s *kbService) Process(ctx context.Context, task tasks.IndexRebuildTask) error {
	return s.BuildIndex(ctx, task.UserID)
}
