package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Luminoxx/Arcturus-API/internal/api"
	"github.com/Luminoxx/Arcturus-API/internal/config"
	"github.com/Luminoxx/Arcturus-API/internal/crypto"
	"github.com/Luminoxx/Arcturus-API/internal/db"
)

const (
	// Version 项目版本
	Version = "0.1.0"
	// AppName 应用名称
	AppName = "Arcturus-API"
)

func main() {
	log.Printf("=== %s v%s ===\n", AppName, Version)

	// 加载配置
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("加载配置失败: %v", err)
	}

	// 加密密钥缺失或非法直接拒绝启动，绝不降级为明文存储
	encryptionKey, err := crypto.LoadEncryptionKey()
	if err != nil {
		log.Fatalf("加载加密密钥失败: %v", err)
	}

	// 初始化数据库
	database, err := db.InitDatabase(&cfg.Database)
	if err != nil {
		log.Fatalf("初始化数据库失败: %v", err)
	}
	if err := db.AutoMigrate(database); err != nil {
		log.Fatalf("数据库迁移失败: %v", err)
	}

	// 组装应用
	app := api.SetupApplication(database, cfg, encryptionKey)
	defer app.Counter.Close()

	// 后台健康监控
	monitorCtx, cancelMonitor := context.WithCancel(context.Background())
	go app.Monitor.Start(monitorCtx)

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: app.Router,
	}

	go func() {
		log.Printf("HTTP 服务启动，监听 :%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("HTTP 服务异常退出: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("收到退出信号，开始优雅关闭...")

	cancelMonitor()
	app.Monitor.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP 服务关闭超时: %v", err)
	}

	if err := db.CloseDatabase(database); err != nil {
		log.Printf("关闭数据库失败: %v", err)
	}
	log.Println("已退出")
}
