// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"kb-assist-go/internal/model"

	"github.com/go-redis/redis/v8"
	"gorm.io/gorm"
)

// DocumentRepository 接口定义了用户文档语料的持久化与缓存操作。
// 数据库是文档的权威来源，Redis 中保存可随时重建的整份快照。
type DocumentRepository interface {
	// AppendBatch 在单个事务中追加一批文档；任何一条写入失败则整批回滚。
	AppendBatch(documents []*model.Document, userID uint) error
	// Page 按主键顺序分页读取指定用户的文档。
	Page(userID uint, limit, offset int) ([]model.Document, error)
	// CountByUser 统计指定用户已累积的文档数量。
	CountByUser(userID uint) (int64, error)

	// GetCachedDocuments 读取用户文档的 Redis 快照；缓存未命中返回 (nil, nil)。
	GetCachedDocuments(ctx context.Context, userID uint) ([]model.Document, error)
	// CacheDocuments 将整份文档集写入 Redis 快照。
	CacheDocuments(ctx context.Context, userID uint, documents []model.Document) error
	// InvalidateCache 在语料变更后删除用户的快照，下次读取时回源重建。
	InvalidateCache(ctx context.Context, userID uint) error
}

// documentRepository 是 DocumentRepository 接口的 GORM+Redis 实现。
type documentRepository struct {
	db          *gorm.DB
	redisClient *redis.Client
}

// NewDocumentRepository 创建一个新的 DocumentRepository 实例。
func NewDocumentRepository(db *gorm.DB, redisClient *redis.Client) DocumentRepository {
	return &documentRepository{db: db, redisClient: redisClient}
}

// cacheKey 生成用户文档快照的 Redis key。
func (r *documentRepository) cacheKey(userID uint) string {
	return fmt.Sprintf("user_documents:%d", userID)
}

// AppendBatch 在单个事务中追加一批文档。
func (r *documentRepository) AppendBatch(documents []*model.Document, userID uint) error {
	if len(documents) == 0 {
		return nil
	}
	return r.db.Transaction(func(tx *gorm.DB) error {
		for _, doc := range documents {
			uid := userID
			doc.UserID = &uid
			if err := tx.Create(doc).Error; err != nil {
				return fmt.Errorf("保存文档到数据库失败: %w", err)
			}
		}
		return nil
	})
}

// Page 按主键顺序分页读取指定用户的文档。
func (r *documentRepository) Page(userID uint, limit, offset int) ([]model.Document, error) {
	var documents []model.Document
	err := r.db.Where("user_id = ?", userID).
		Order("id asc").
		Limit(limit).
		Offset(offset).
		Find(&documents).Error
	if err != nil {
		return nil, fmt.Errorf("从数据库分页加载文档失败: %w", err)
	}
	return documents, nil
}

// CountByUser 统计指定用户已累积的文档数量。
func (r *documentRepository) CountByUser(userID uint) (int64, error) {
	var total int64
	err := r.db.Model(&model.Document{}).Where("user_id = ?", userID).Count(&total).Error
	return total, err
}

// GetCachedDocuments 读取用户文档的 Redis 快照。
func (r *documentRepository) GetCachedDocuments(ctx context.Context, userID uint) ([]model.Document, error) {
	jsonData, err := r.redisClient.Get(ctx, r.cacheKey(userID)).Result()
	if err == redis.Nil {
		return nil, nil // 缓存未命中
	}
	if err != nil {
		return nil, fmt.Errorf("读取文档缓存失败: %w", err)
	}
	var documents []model.Document
	if err := json.Unmarshal([]byte(jsonData), &documents); err != nil {
		return nil, fmt.Errorf("解析文档缓存失败: %w", err)
	}
	return documents, nil
}

// CacheDocuments 将整份文档集写入 Redis 快照。
func (r *documentRepository) CacheDocuments(ctx context.Context, userID uint, documents []model.Document) error {
	jsonData, err := json.Marshal(documents)
	if err != nil {
		return fmt.Errorf("序列化文档缓存失败: %w", err)
	}
	if err := r.redisClient.Set(ctx, r.cacheKey(userID), jsonData, 0).Err(); err != nil {
		return fmt.Errorf("写入文档缓存失败: %w", err)
	}
	return nil
}

// InvalidateCache 删除用户的文档快照。
func (r *documentRepository) InvalidateCache(ctx context.Context, userID uint) error {
	if err := r.redisClient.Del(ctx, r.cacheKey(userID)).Err(); err != nil {
		return fmt.Errorf("删除文档缓存失败: %w", err)
	}
	return nil
}
