// Package main 是应用程序的入口点。
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kb-assist-go/internal/config"
	"kb-assist-go/internal/handler"
	"kb-assist-go/internal/middleware"
	"kb-assist-go/internal/model"
	"kb-assist-go/internal/repository"
	"kb-assist-go/internal/service"
	"kb-assist-go/pkg/database"
	"kb-assist-go/pkg/embedding"
	"kb-assist-go/pkg/kafka"
	"kb-assist-go/pkg/llm"
	"kb-assist-go/pkg/log"
	"kb-assist-go/pkg/storage"
	"kb-assist-go/pkg/token"

	"github.com/gin-gonic/gin"
)

func main() {
	// 1. 初始化配置
	config.Init("./configs/config.yaml")
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync() // 确保在程序退出时刷新所有缓冲的日志条目
	log.Info("日志记录器初始化成功")

	// 3. 初始化数据库、Redis、对象存储与 Kafka
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	kafka.InitProducer(cfg.Kafka)

	if err := database.DB.AutoMigrate(&model.User{}, &model.File{}, &model.Document{}); err != nil {
		log.Fatal("数据库迁移失败", err)
	}

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	fileRepo := repository.NewFileRepository(database.DB)
	docRepo := repository.NewDocumentRepository(database.DB, database.RDB)
	conversationRepo := repository.NewConversationRepository(database.RDB, cfg.KnowledgeBase.HistoryTurns)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	userService := service.NewUserService(userRepo, jwtManager)
	kbService := service.NewKnowledgeBaseService(docRepo, embeddingClient, cfg.KnowledgeBase)
	conversationService := service.NewConversationService(conversationRepo)
	chatService := service.NewChatService(kbService, conversationService, llmClient, cfg.KnowledgeBase.TopK)
	uploadService := service.NewUploadService(fileRepo, kbService, cfg.MinIO)

	// 6. 启动后台 Kafka 消费者，处理索引重建任务
	go kafka.StartConsumer(cfg.Kafka, kbService)

	// 7. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 8. 注册路由
	apiV1 := r.Group("/api/v1")
	{
		// Auth 路由组
		auth := apiV1.Group("/auth")
		{
			auth.POST("/refreshToken", handler.NewAuthHandler(userService).RefreshToken)
		}

		users := apiV1.Group("/users")
		{
			// 无需认证的路由 (公开访问)
			users.POST("/register", handler.NewUserHandler(userService).Register)
			users.POST("/login", handler.NewUserHandler(userService).Login)

			// 需要认证的路由 (仅限登录用户访问)
			authed := users.Group("/")
			authed.Use(middleware.AuthMiddleware(jwtManager, userService))
			{
				authed.GET("/me", handler.NewUserHandler(userService).GetProfile)
				authed.GET("/conversation", handler.NewConversationHandler(conversationService).GetConversations)
				authed.DELETE("/conversation", handler.NewConversationHandler(conversationService).ClearConversations)
			}
		}

		// Upload 路由组，需要认证
		upload := apiV1.Group("/upload")
		upload.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			upload.POST("", handler.NewUploadHandler(uploadService).Upload)
			upload.GET("/files", handler.NewUploadHandler(uploadService).ListFiles)
		}

		// Query 路由组，需要认证
		query := apiV1.Group("/query")
		query.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			query.GET("", handler.NewQueryHandler(chatService).Query)
		}
	}

	// 启动 HTTP 服务器并实现优雅停机
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: r,
	}

	go func() {
		log.Infof("服务启动于 %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("HTTP 服务监听失败: %s\n", err)
		}
	}()

	// 等待中断信号以实现优雅停机
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	// 设置一个5秒的超时上下文
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
