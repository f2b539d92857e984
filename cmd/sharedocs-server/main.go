package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"time"

	"github.com/IBM/sarama"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	_ "github.com/go-sql-driver/mysql"
	"github.com/redis/go-redis/v9"

	"github.com/apshuang/ShareDocs/internal/authservice"
	"github.com/apshuang/ShareDocs/internal/cache"
	"github.com/apshuang/ShareDocs/internal/collab"
	"github.com/apshuang/ShareDocs/internal/config"
	"github.com/apshuang/ShareDocs/internal/httpapi/handlers"
	"github.com/apshuang/ShareDocs/internal/httpapi/middleware"
	"github.com/apshuang/ShareDocs/internal/store"
	"github.com/apshuang/ShareDocs/internal/ws"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("init config failed: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
	})
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		log.Fatalf("Failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	db, err := sql.Open("mysql", cfg.Mysql.DSN)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	gdb, err := store.InitMySQL(cfg.Mysql.DSN)
	if err != nil {
		log.Fatalf("Failed to init gorm: %v", err)
	}

	// SyncProducer 必须开启 Return.Successes
	kafkaCfg := sarama.NewConfig()
	kafkaCfg.Producer.Return.Successes = true
	kafkaCfg.Producer.RequiredAcks = sarama.WaitForLocal
	producer, err := sarama.NewSyncProducer(cfg.Kafka.Brokers, kafkaCfg)
	if err != nil {
		log.Fatalf("Failed to connect kafka: %v", err)
	}
	defer producer.Close()

	kafkaSem := collab.NewSemaphoreControl()
	dispatcher := collab.NewKafkaDispatcher(
		producer,
		cfg.Kafka.Topic,
		kafkaSem,
		collab.KafkaDispatcherOptions{
			QueueSize:   10_000,
			Workers:     4,
			MaxRetry:    3,
			BaseBackoff: 50 * time.Millisecond,
			MaxBackoff:  1 * time.Second,
		},
	)

	contents, err := store.NewFileContentStore(cfg.Documents.ContentDir)
	if err != nil {
		log.Fatalf("Failed to init content store: %v", err)
	}
	documents := store.NewDocumentStore(gdb)
	shares := store.NewShareStore(gdb)
	users := store.NewUserStore(db)
	oplog := store.NewOperationStore(db)

	svc := collab.NewDocService(contents, documents, oplog, dispatcher)

	presence := cache.NewRedisPresence(rdb)
	hub := ws.NewHub(presence)
	wsManager := ws.NewManager(hub, svc, documents, shares)

	auth := authservice.NewHandler(users)
	docHandler := handlers.NewDocumentHandler(documents, shares, contents, oplog, svc, hub)
	shareHandler := handlers.NewShareHandler(documents, shares, users)

	r := gin.New()
	r.Use(gin.Logger(), gin.Recovery())
	r.Use(cors.New(cors.Config{
		AllowOriginFunc:  func(origin string) bool { return true },
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "HEAD", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"ok": true})
	})

	api := r.Group("/api")
	{
		authGroup := api.Group("/auth")
		authGroup.POST("/register", auth.Register)
		authGroup.POST("/login", auth.Login)
		authGroup.POST("/refresh", auth.Refresh)
		authGroup.GET("/me", middleware.AuthMiddleware(), auth.Me)

		docs := api.Group("/documents", middleware.AuthMiddleware())
		docs.POST("", docHandler.Create)
		docs.GET("", docHandler.List)
		docs.GET("/:id", docHandler.Get)
		docs.PATCH("/:id", docHandler.Update)
		docs.DELETE("/:id", docHandler.Delete)
		docs.POST("/:id/operations", docHandler.SubmitOperation)
		docs.GET("/:id/editors", docHandler.ListEditors)
		docs.POST("/:id/shares", shareHandler.Create)
		docs.GET("/:id/shares", shareHandler.List)
		docs.DELETE("/:id/shares/:shareId", shareHandler.Delete)
	}

	// ws 鉴权走同一个中间件（token 允许放在 query 里）
	r.GET("/ws", middleware.AuthMiddleware(), wsManager.WebSocketConnect)

	_ = r.Run(fmt.Sprintf(":%d", cfg.Running.Port))
}
