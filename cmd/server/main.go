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

	"annolab-go/internal/config"
	"annolab-go/internal/handler"
	"annolab-go/internal/middleware"
	"annolab-go/internal/pipeline"
	"annolab-go/internal/repository"
	"annolab-go/internal/service"
	"annolab-go/pkg/database"
	"annolab-go/pkg/embedding"
	"annolab-go/pkg/es"
	"annolab-go/pkg/kafka"
	"annolab-go/pkg/llm"
	"annolab-go/pkg/log"
	"annolab-go/pkg/storage"
	"annolab-go/pkg/tika"
	"annolab-go/pkg/token"

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

	// 3. 初始化数据库和外部依赖
	database.InitMySQL(cfg.Database.MySQL.DSN)
	database.InitRedis(cfg.Database.Redis.Addr, cfg.Database.Redis.Password, cfg.Database.Redis.DB)
	storage.InitMinIO(cfg.MinIO)
	if err := es.InitES(cfg.Elasticsearch); err != nil {
		log.Errorf("es 初始化失败 %s", err)
		return
	}
	kafka.InitProducer(cfg.Kafka)

	// 4. 初始化 Repository
	userRepo := repository.NewUserRepository(database.DB)
	projectRepo := repository.NewProjectRepository(database.DB)
	docRepo := repository.NewDocumentRepository(database.DB)
	chunkRepo := repository.NewChunkRepository(database.DB)
	annotationRepo := repository.NewAnnotationRepository(database.DB)
	uploadRepo := repository.NewUploadRepository(database.DB, database.RDB)
	conversationRepo := repository.NewConversationRepository(database.RDB)

	// 5. 初始化 Service (依赖注入)
	jwtManager := token.NewJWTManager(cfg.JWT.Secret, cfg.JWT.AccessTokenExpireHours, cfg.JWT.RefreshTokenExpireDays)
	tikaClient := tika.NewClient(cfg.Tika)
	embeddingClient := embedding.NewClient(cfg.Embedding)
	llmClient := llm.NewClient(cfg.LLM)
	userService := service.NewUserService(userRepo, jwtManager)
	rankService := service.NewRankService(embeddingClient, cfg.Embedding, chunkRepo, database.RDB)
	searchService := service.NewSearchService(projectRepo, docRepo, chunkRepo, annotationRepo, rankService, llmClient, cfg.Elasticsearch, cfg.Retrieval)
	documentService := service.NewDocumentService(docRepo, chunkRepo, cfg.Elasticsearch, cfg.MinIO)
	projectService := service.NewProjectService(projectRepo, docRepo, documentService)
	annotationService := service.NewAnnotationService(docRepo, chunkRepo, annotationRepo, rankService, llmClient)
	uploadService := service.NewUploadService(uploadRepo, docRepo, cfg.MinIO)
	conversationService := service.NewConversationService(conversationRepo)
	chatService := service.NewChatService(searchService, llmClient, conversationRepo)

	// 6. 初始化文档入库管道 (Processor)
	processor := pipeline.NewProcessor(
		tikaClient,
		cfg.Elasticsearch,
		cfg.MinIO,
		cfg.Retrieval,
		docRepo,
		chunkRepo,
	)

	// 7. 启动后台 Kafka 消费者
	go kafka.StartConsumer(cfg.Kafka, processor)

	// 8. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New() // 使用 New() 创建一个不带默认中间件的引擎
	// 添加我们自定义的日志中间件和 Gin 的 Recovery 中间件
	r.Use(middleware.RequestLogger(), gin.Recovery())

	// 9. 注册路由
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
				authed.POST("/logout", handler.NewUserHandler(userService).Logout)
			}
		}

		// Project 路由组，需要认证
		projectHandler := handler.NewProjectHandler(projectService)
		projects := apiV1.Group("/projects")
		projects.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			projects.POST("", projectHandler.CreateProject)
			projects.GET("", projectHandler.ListProjects)
			projects.GET("/:projectId", projectHandler.GetProject)
			projects.PUT("/:projectId", projectHandler.UpdateProject)
			projects.DELETE("/:projectId", projectHandler.DeleteProject)
			projects.POST("/:projectId/folders", projectHandler.CreateFolder)
			projects.GET("/:projectId/folders", projectHandler.ListFolders)
			projects.GET("/:projectId/documents", handler.NewDocumentHandler(documentService).ListByProject)
			projects.GET("/:projectId/conversation", handler.NewConversationHandler(conversationService).GetConversationHistory)
			projects.POST("/:projectId/conversation/reset", handler.NewChatHandler(chatService, userService, jwtManager).ResetConversation)
		}

		// Folder 路由组，需要认证
		folderHandler := projectHandler
		folders := apiV1.Group("/folders")
		folders.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			folders.PUT("/:folderId", folderHandler.UpdateFolder)
			folders.DELETE("/:folderId", folderHandler.DeleteFolder)
			folders.GET("/:folderId/documents", handler.NewDocumentHandler(documentService).ListByFolder)
		}

		// Upload 路由组，需要认证
		uploadHandler := handler.NewUploadHandler(uploadService)
		upload := apiV1.Group("/upload")
		upload.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			upload.POST("/check", uploadHandler.CheckFile)
			upload.POST("/part", uploadHandler.UploadPart)
			upload.POST("/merge", uploadHandler.MergeParts)
			upload.GET("/status", uploadHandler.GetUploadStatus)
			upload.GET("/supported-types", uploadHandler.GetSupportedFileTypes)
			upload.POST("/fast-upload", uploadHandler.FastUpload)
		}

		// Document 路由组，需要认证
		documentHandler := handler.NewDocumentHandler(documentService)
		annotationHandler := handler.NewAnnotationHandler(annotationService)
		searchHandler := handler.NewSearchHandler(searchService)
		documents := apiV1.Group("/documents")
		documents.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			documents.GET("/:documentId", documentHandler.GetDocument)
			documents.GET("/:documentId/text", documentHandler.GetDocumentText)
			documents.GET("/:documentId/download", documentHandler.GetDownloadURL)
			documents.DELETE("/:documentId", documentHandler.DeleteDocument)

			documents.POST("/:documentId/intent", annotationHandler.SetIntent)
			documents.GET("/:documentId/annotations", annotationHandler.ListAnnotations)
			documents.POST("/:documentId/annotations", annotationHandler.CreateAnnotation)

			documents.GET("/:documentId/search", searchHandler.SearchDocument)
		}

		// Annotation 路由组，需要认证
		annotations := apiV1.Group("/annotations")
		annotations.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			annotations.PUT("/:annotationId", annotationHandler.UpdateAnnotation)
			annotations.DELETE("/:annotationId", annotationHandler.DeleteAnnotation)
		}

		// Search 路由组
		search := apiV1.Group("/search")
		search.Use(middleware.AuthMiddleware(jwtManager, userService))
		{
			search.GET("/global", searchHandler.GlobalSearch)
		}

		// Chat 路由 (WebSocket)
		chatHandler := handler.NewChatHandler(chatService, userService, jwtManager)
		chatGroup := apiV1.Group("/chat")
		{
			chatGroup.GET("/websocket-token", chatHandler.GetWebsocketStopToken)
		}
		r.GET("/chat/:projectId/:token", chatHandler.Handle)
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

	// 关闭 HTTP 服务器
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}

	// Kafka 消费者是一个阻塞循环，进程退出时自然结束，
	// 若需要更精细的控制，可以在 StartConsumer 中加入关闭通道。
	log.Info("服务已优雅关闭")
}
