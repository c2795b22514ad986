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

	"camaral-smart-go/internal/bot"
	"camaral-smart-go/internal/config"
	"camaral-smart-go/internal/handler"
	"camaral-smart-go/internal/middleware"
	"camaral-smart-go/internal/model"
	"camaral-smart-go/internal/pipeline"
	"camaral-smart-go/internal/repository"
	"camaral-smart-go/internal/service"
	"camaral-smart-go/pkg/database"
	"camaral-smart-go/pkg/embedding"
	"camaral-smart-go/pkg/es"
	"camaral-smart-go/pkg/kafka"
	"camaral-smart-go/pkg/llm"
	"camaral-smart-go/pkg/log"
	"camaral-smart-go/pkg/storage"
	"camaral-smart-go/pkg/telegram"
	"camaral-smart-go/pkg/tika"
	"camaral-smart-go/pkg/token"

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

	// 3. 初始化基础设施
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch, cfg.Embedding.Dimensions); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	if err := database.DB.AutoMigrate(
		&model.User{},
		&model.ChatMessage{},
		&model.Document{},
		&model.DocumentChunk{},
	); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	msgRepo := repository.NewChatMessageRepository(database.DB)
	docRepo := repository.NewDocumentRepository(database.DB, database.RDB)
	chunkRepo := repository.NewChunkRepository(database.DB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	tikaClient := tika.NewClient(cfg.Tika)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)

	retrievalService := service.NewRetrievalService(
		embeddingClient,
		service.NewESVectorIndex(cfg.Elasticsearch.IndexName),
		cfg.RAG.TopK,
		cfg.RAG.SimilarityThreshold,
		cfg.RAG.NoResultText,
	)
	memoryService := service.NewMemoryService(llmClient, cfg.LLM.FallbackModels, cfg.Memory.SummaryMaxTokens)
	conversationService := service.NewConversationService(
		msgRepo,
		userRepo,
		memoryService,
		time.Duration(cfg.Memory.ConversationTimeoutSeconds)*time.Second,
	)
	chatService := service.NewChatService(userRepo, msgRepo, retrievalService, llmClient, cfg.Memory.ChatHistoryLimit)
	documentService := service.NewDocumentService(docRepo, chunkRepo, cfg.MinIO, cfg.Elasticsearch)

	// 6. 初始化文档摄取管道 (Processor)
	processor := pipeline.NewProcessor(
		tikaClient,
		embeddingClient,
		cfg.Elasticsearch,
		cfg.MinIO,
		cfg.RAG,
		docRepo,
		chunkRepo,
	)

	// 7. 启动后台 Kafka 消费者
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 8. 启动 Telegram 渠道
	botCtx, cancelBot := context.WithCancel(context.Background())
	defer cancelBot()
	if cfg.Telegram.Token != "" {
		tgBot := bot.New(telegram.NewClient(cfg.Telegram.Token), chatService, conversationService, cfg.Telegram.PollTimeoutSeconds)
		go tgBot.Run(botCtx)
	} else {
		log.Warnf("未配置 Telegram token，Telegram 渠道未启动")
	}

	// 9. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 10. 注册路由
	authHandler := handler.NewAuthHandler(jwtManager)
	documentHandler := handler.NewDocumentHandler(documentService)
	chatHandler := handler.NewChatHandler(chatService, conversationService, jwtManager)

	apiV1 := r.Group("/api/v1")
	{
		auth := apiV1.Group("/auth")
		{
			auth.POST("/login", authHandler.Login)
			auth.POST("/refreshToken", authHandler.Refresh)
		}

		// Document 路由组，需要认证
		documents := apiV1.Group("/documents")
		documents.Use(middleware.AuthMiddleware(jwtManager))
		{
			documents.POST("", documentHandler.Upload)
			documents.GET("", documentHandler.List)
			documents.DELETE("/:id", documentHandler.Delete)
		}

		// Chat 辅助路由，需要认证
		chatGroup := apiV1.Group("/chat")
		chatGroup.Use(middleware.AuthMiddleware(jwtManager))
		{
			chatGroup.GET("/ws-token", chatHandler.GetWebsocketToken)
		}
	}

	// Chat 路由 (WebSocket)，token 走路径参数
	r.GET("/chat/:token", chatHandler.Handle)

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

	cancelBot()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	log.Info("服务已优雅关闭")
}
