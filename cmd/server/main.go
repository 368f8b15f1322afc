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

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"

	"streamgate-go/internal/auth"
	"streamgate-go/internal/config"
	"streamgate-go/internal/dispatcher"
	"streamgate-go/internal/handler"
	"streamgate-go/internal/middleware"
	"streamgate-go/internal/sessioncache"
	"streamgate-go/pkg/bus"
	"streamgate-go/pkg/log"
	"streamgate-go/pkg/token"
)

func main() {
	// 1. 初始化配置
	if err := config.Init("./configs/config.yaml"); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	cfg := config.Conf

	// 2. 初始化日志记录器
	log.Init(cfg.Log.Level, cfg.Log.Format, cfg.Log.OutputPath)
	defer log.Sync()
	log.Info("日志记录器初始化成功")

	// 3. 初始化 Bus Client 与 Session Cache 的底层连接
	busRedis := redis.NewClient(&redis.Options{
		Addr:     cfg.Bus.Redis.Addr,
		Password: cfg.Bus.Redis.Password,
		DB:       cfg.Bus.Redis.DB,
	})
	cacheRedis := busRedis
	if cfg.Cache.Redis.Addr != cfg.Bus.Redis.Addr || cfg.Cache.Redis.DB != cfg.Bus.Redis.DB {
		cacheRedis = redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.Redis.Addr,
			Password: cfg.Cache.Redis.Password,
			DB:       cfg.Cache.Redis.DB,
		})
	}

	busClient := bus.New(bus.Config{
		KafkaBrokers: cfg.Bus.KafkaBrokers,
		RedisClient:  busRedis,
	})

	if cfg.Startup.Strict {
		checkCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		for _, rdb := range []*redis.Client{busRedis, cacheRedis} {
			if err := rdb.Ping(checkCtx).Err(); err != nil {
				cancel()
				log.Error("redis unreachable at startup", err)
				os.Exit(3)
			}
		}
		cancel()
	}

	cache := sessioncache.New(cacheRedis, sessioncache.Config{
		HotMsgLimit: cfg.Cache.HotMsgLimit,
		HotTTL:      cfg.Cache.HotTTL,
	})

	// 4. 初始化 Auth Verifier 与 Streaming Dispatcher
	tokenManager := token.NewManager(cfg.JWT.Secret, cfg.JWT.Alg)
	verifier := auth.New(tokenManager, cache)

	d := dispatcher.New(busClient, cache, dispatcher.Config{
		RequestSubject:   cfg.Dispatcher.RequestSubject,
		RawMemorySubject: cfg.Dispatcher.RawMemorySubject,
		IdleChunkTimeout: cfg.Dispatcher.IdleChunkTimeout,
		TotalTicketTTL:   cfg.Dispatcher.TotalTicketTTL,
		DrainTimeout:     cfg.Dispatcher.DrainTimeout,
		AdmissionTimeout: cfg.Dispatcher.AdmissionTimeout,
	})

	// 5. 设置 Gin 模式并创建路由引擎
	gin.SetMode(cfg.Server.Mode)
	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery())

	wsHandler := handler.NewWSHandler(verifier, d, cfg.WebSocket.KeepaliveInterval)
	enqueueHandler := handler.NewEnqueueHandler(d)

	r.GET(cfg.WebSocket.Path, wsHandler.Handle)

	chat := r.Group("/chat")
	chat.Use(middleware.AuthMiddleware(verifier))
	{
		chat.POST("", enqueueHandler.Handle)
	}

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, d.Stats())
	})

	// 6. 启动 HTTP 服务器并实现优雅停机
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

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("接收到停机信号，正在关闭服务...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("HTTP 服务器关闭失败: %v", err)
	}
	if err := busClient.Close(); err != nil {
		log.Warnf("关闭 Bus Client 失败: %v", err)
	}
	log.Info("服务已优雅关闭")
}
