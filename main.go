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

	"support-lab/internal/config"
	"support-lab/internal/db"
	"support-lab/internal/logger"
	"support-lab/internal/router"
	"support-lab/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
)

var configPath string

func main() {
	rootCmd := &cobra.Command{
		Use:          "support-lab",
		Short:        "技术支持工单分析服务",
		SilenceUsage: true,
		RunE:         runServe,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config/config.yaml", "配置文件路径")

	rootCmd.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "启动 HTTP 服务",
			RunE:  runServe,
		},
		&cobra.Command{
			Use:   "migrate",
			Short: "只执行数据库迁移",
			RunE:  runMigrate,
		},
	)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setup() (*config.Config, error) {
	// 加载配置
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := logger.Init(cfg.Logger); err != nil {
		return nil, fmt.Errorf("初始化日志失败: %w", err)
	}
	return cfg, nil
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	if err := db.InitDB(cfg); err != nil {
		return err
	}
	logger.Get().Info("数据库迁移完成")
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := setup()
	if err != nil {
		return err
	}
	gin.SetMode(cfg.Server.Mode)

	// 初始化数据库
	if err := db.InitDB(cfg); err != nil {
		return err
	}

	// 初始化服务
	svcCtx, err := service.NewServiceContext(cfg, db.DB)
	if err != nil {
		return err
	}

	r := router.SetupRouter(svcCtx)

	srv := &http.Server{
		Addr:        fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:     r,
		ReadTimeout: 15 * time.Second,
	}
	// 提交工单会同步等待推理服务
	srv.WriteTimeout = time.Duration(cfg.LLM.TimeoutSeconds+30) * time.Second

	log := logger.Get()
	errCh := make(chan error, 1)
	go func() {
		log.Info("服务启动", "addr", srv.Addr, "llm_provider", cfg.LLM.Provider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-errCh:
		return fmt.Errorf("启动服务失败: %w", err)
	case <-quit:
	}

	log.Info("正在关闭服务")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("关闭服务失败: %w", err)
	}
	return nil
}
