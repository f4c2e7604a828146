// Package repository 定义了与数据库进行数据交换的接口和实现。
package repository

import (
	"kb-assist-go/internal/model"

	"gorm.io/gorm"
)

// FileRepository 接口定义了上传文件元数据的持久化操作。
type FileRepository interface {
	Create(file *model.File) error
	FindByUserID(userID uint) ([]model.File, error)
}

// fileRepository 是 FileRepository 接口的 GORM 实现。
type fileRepository struct {
	db *gorm.DB
}

// NewFileRepository 创建一个新的 FileRepository 实例。
func NewFileRepository(db *gorm.DB) FileRepository {
	return &fileRepository{db: db}
}

// Create 在数据库中创建一条新的文件记录。
func (r *fileRepository) Create(file *model.File) error {
	return r.db.Create(file).Error
}

// FindByUserID 查找指定用户上传的所有文件记录。
func (r *fileRepository) FindByUserID(userID uint) ([]model.File, error) {
	var files []model.File
	err := r.db.Where("user_id = ?", userID).Order("id asc").Find(&files).Error
	return files, err
}
