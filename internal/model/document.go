// Package model 定义了与数据库表对应的 Go 结构体。
package model

// Document 对应于数据库中的 'documents' 表。
// 每条记录是一段可被索引的原始文本，归属某个用户的语料库。
// 记录一经写入即不可变，当前不支持单条删除。
type Document struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID   *uint  `gorm:"index;column:user_id" json:"userId"` // 可为空：未归属用户的公共文档
	Content  string `gorm:"type:text;not null" json:"content"`
	FileName string `gorm:"type:varchar(255)" json:"fileName"` // 可选：来源文件名
}

// TableName 指定了此模型在数据库中对应的表名。
func (Document) TableName() string {
	return "documents"
}
