package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"flaparena/config"
	"flaparena/server"
)

// FlapArena 入口：加载配置，启动默认会话与 HTTP + WebSocket 服务
func main() {
	config.BindFlags(pflag.CommandLine)
	pflag.Parse()

	cfg, err := config.Load(config.Options{Flags: pflag.CommandLine})
	if err != nil {
		fmt.Fprintf(os.Stderr, "flaparena: %v\n", err)
		os.Exit(2)
	}

	// zap 日志写入文件（带滚动），开发模式同时输出到控制台
	log, err := server.InitLogger(server.LogOptions{
		File:       cfg.Log.File,
		Dev:        cfg.Log.Dev,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "flaparena: init logger: %v\n", err)
		os.Exit(1)
	}
	defer server.SyncLogger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := server.NewManager(ctx, cfg, log)
	// 预创建默认会话，客户端不带 ?session 时接入
	s, err := m.Create(cfg.Server.Session)
	if err != nil {
		log.Errorw("create default session failed", "err", err)
		return
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.NewRouter(m, cfg.Server.Mode),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Infow("FlapArena listening", "addr", cfg.Server.Addr, "session", s.ID, "tickRate", cfg.Server.TickRate)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Errorw("listen failed", "err", err)
			stop()
		}
	}()

	// 优雅退出（Ctrl+C）
	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warnw("http shutdown", "err", err)
	}
	m.Shutdown()
}
