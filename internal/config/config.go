// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	KnowledgeBase KnowledgeBaseConfig `mapstructure:"knowledge_base"`
	Upload        UploadConfig        `mapstructure:"upload"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	APIKey     string `mapstructure:"api_key"`
	BaseURL    string `mapstructure:"base_url"`
	Model      string `mapstructure:"model"`
	Dimensions int    `mapstructure:"dimensions"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	APIKey       string  `mapstructure:"api_key"`
	BaseURL      string  `mapstructure:"base_url"`
	Model        string  `mapstructure:"model"`
	SystemPrompt string  `mapstructure:"system_prompt"`
	Temperature  float64 `mapstructure:"temperature"`
	TopP         float64 `mapstructure:"top_p"`
	MaxTokens    int     `mapstructure:"max_tokens"`
}

// KnowledgeBaseConfig 存储知识库索引与检索相关的配置。
type KnowledgeBaseConfig struct {
	ChunkSize    int `mapstructure:"chunk_size"`    // 分块大小（字符数）
	ChunkOverlap int `mapstructure:"chunk_overlap"` // 相邻分块的重叠字符数
	TopK         int `mapstructure:"top_k"`         // 检索返回的分块数量
	PageSize     int `mapstructure:"page_size"`     // 从数据库分页加载文档的页大小
	HistoryTurns int `mapstructure:"history_turns"` // 持久化保留的最近对话轮数
}

// UploadConfig 存储文件上传相关的配置。
type UploadConfig struct {
	TempDir string `mapstructure:"temp_dir"`
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")

	if err := viper.ReadInConfig(); err != nil {
		panic(fmt.Errorf("读取配置文件失败: %w", err))
	}

	if err := viper.Unmarshal(&Conf); err != nil {
		panic(fmt.Errorf("无法将配置解析到结构体中: %w", err))
	}

	applyDefaults(&Conf)
}

// applyDefaults 为未配置的知识库与上传参数填充默认值。
func applyDefaults(c *Config) {
	if c.KnowledgeBase.ChunkSize <= 0 {
		c.KnowledgeBase.ChunkSize = 512
	}
	if c.KnowledgeBase.ChunkOverlap < 0 || c.KnowledgeBase.ChunkOverlap >= c.KnowledgeBase.ChunkSize {
		c.KnowledgeBase.ChunkOverlap = 50
	}
	if c.KnowledgeBase.TopK <= 0 {
		c.KnowledgeBase.TopK = 3
	}
	if c.KnowledgeBase.PageSize <= 0 {
		c.KnowledgeBase.PageSize = 100
	}
	if c.KnowledgeBase.HistoryTurns <= 0 {
		c.KnowledgeBase.HistoryTurns = 10
	}
	if c.Upload.TempDir == "" {
		c.Upload.TempDir = "uploads"
	}
}
