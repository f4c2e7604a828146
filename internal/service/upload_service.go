// Package service 包含了应用的业务逻辑层。
package service

import (
	"context"
	"path/filepath"

	"kb-assist-go/internal/config"
	"kb-assist-go/internal/model"
	"kb-assist-go/internal/repository"
	"kb-assist-go/pkg/kafka"
	"kb-assist-go/pkg/log"
	"kb-assist-go/pkg/storage"
	"kb-assist-go/pkg/tasks"
)

// UploadService 定义了文件上传入库的接口。
// 上传的文件已由 handler 落盘到临时目录，这里负责登记元数据、
// 归档原始文件、解析入库并调度索引重建。
type UploadService interface {
	// IngestFiles 处理一批已落盘的文件，返回入库的文档数量。
	IngestFiles(ctx context.Context, filePaths []string, userID uint) (int, error)
	// ListFiles 列出用户上传过的文件记录。
	ListFiles(userID uint) ([]model.File, error)
}

type uploadService struct {
	fileRepo  repository.FileRepository
	kbService KnowledgeBaseService
	minioCfg  config.MinIOConfig
}

// NewUploadService 创建一个新的 UploadService 实例。
func NewUploadService(fileRepo repository.FileRepository, kbService KnowledgeBaseService, minioCfg config.MinIOConfig) UploadService {
	return &uploadService{
		fileRepo:  fileRepo,
		kbService: kbService,
		minioCfg:  minioCfg,
	}
}

// IngestFiles 处理一批已落盘的文件。
// 元数据登记与对象存储归档都是尽力而为：单个文件失败只记录告警，不中止整批。
// 文档入库成功后通过 Kafka 调度后台索引重建，不阻塞上传响应。
func (s *uploadService) IngestFiles(ctx context.Context, filePaths []string, userID uint) (int, error) {
	for _, path := range filePaths {
		fileName := filepath.Base(path)

		record := &model.File{
			UserID:   userID,
			FileName: fileName,
			FilePath: path,
		}
		if err := s.fileRepo.Create(record); err != nil {
			log.Warnf("[UploadService] 登记文件元数据失败: %s, error: %v", fileName, err)
		}

		// 原始文件归档到对象存储，失败不影响入库
		if err := storage.ArchiveFile(ctx, s.minioCfg.BucketName, userID, fileName, path); err != nil {
			log.Warnf("[UploadService] 归档原始文件失败: %s, error: %v", fileName, err)
		}
	}

	count, err := s.kbService.Ingest(ctx, filePaths, userID)
	if err != nil {
		return 0, err
	}

	if count > 0 {
		// 后台重建索引；Kafka 不可用时查询路径会在需要时同步补建
		if err := kafka.ProduceRebuildTask(tasks.IndexRebuildTask{UserID: userID}); err != nil {
			log.Warnf("[UploadService] 调度索引重建任务失败, userID: %d, error: %v", userID, err)
		}
	}

	return count, nil
}

// ListFiles 列出用户上传过的文件记录。
func (s *uploadService) ListFiles(userID uint) ([]model.File, error) {
	return s.fileRepo.FindByUserID(userID)
}
