// Package model 定义了与数据库表对应的 Go 结构体。
package model

import "time"

// File 对应于数据库中的 'files' 表。
// 它记录了每个上传文件的元数据，原始内容归档在对象存储中。
type File struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    uint      `gorm:"index;not null" json:"userId"`
	FileName  string    `gorm:"type:varchar(255);not null" json:"fileName"`
	FilePath  string    `gorm:"type:varchar(500);not null" json:"filePath"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
}

// TableName 指定了此模型在数据库中对应的表名。
func (File) TableName() string {
	return "files"
}
