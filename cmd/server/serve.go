package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/palemoky/magic-table/internal/logger"
	"github.com/palemoky/magic-table/internal/server"
	"github.com/palemoky/magic-table/internal/storage"
)

func newServeCmd() *cobra.Command {
	var (
		port    int
		players int
		logDir  string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "启动一局对战会话",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := logger.Init(logDir); err != nil {
				log.Printf("⚠️ 日志文件初始化失败: %v", err)
			}
			defer logger.Close()

			cfg := loadConfig()
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			if cmd.Flags().Changed("players") {
				cfg.Server.Players = players
			}

			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var (
				opts     []server.Option
				archives storage.MultiArchive
			)
			if cfg.Archive.Enabled {
				archives = append(archives, storage.NewFileArchive(cfg.Archive.Dir))
			}
			if cfg.Redis.Enabled {
				rdb, err := connectRedis(ctx, cfg.Redis)
				if err != nil {
					return err
				}
				defer func() { _ = rdb.Close() }()

				store := storage.NewRedisStore(rdb)
				archives = append(archives, store)
				opts = append(opts, server.WithRedisStore(store))
			}
			opts = append(opts, server.WithArchive(archives))

			srv, err := server.NewServer(cfg, opts...)
			if err != nil {
				return err
			}
			if err := srv.Start(); err != nil {
				return err
			}

			select {
			case <-ctx.Done():
				log.Println("正在关闭会话...")
				srv.Close()
			case <-srv.Done():
			}
			log.Println("👋 会话结束")
			return nil
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "主端口（覆盖配置）")
	cmd.Flags().IntVarP(&players, "players", "n", 0, "玩家数（覆盖配置）")
	cmd.Flags().StringVar(&logDir, "log-dir", "", "日志目录（默认 ~/.magic-table）")
	return cmd
}
