package service

import (
	"context"
	"fmt"
	"time"

	"support-lab/internal/config"
	"support-lab/internal/logger"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

type ServiceContext struct {
	SupportService     *SupportService
	TestLogService     *TestLogService
	SapienceService    *SapienceService
	IntegrationService *IntegrationService
	Uploads            *UploadStore
}

func NewServiceContext(cfg *config.Config, conn *gorm.DB) (*ServiceContext, error) {
	gateway, err := NewGateway(cfg.LLM)
	if err != nil {
		return nil, err
	}

	// dify 没有文生图接口，此时 images 为 nil
	images, _ := gateway.(ImageGenerator)
	uploads := NewUploadStore(cfg.Upload)
	testLogs := NewTestLogService(conn)

	return &ServiceContext{
		SupportService:     NewSupportService(NewGormTicketStore(conn), gateway, newTicketListCache(cfg.Redis)),
		TestLogService:     testLogs,
		SapienceService:    NewSapienceService(conn, gateway),
		IntegrationService: NewIntegrationService(gateway, images, NewSMTPMailer(cfg.SMTP), uploads, testLogs),
		Uploads:            uploads,
	}, nil
}

// newTicketListCache Redis 不可用时退回进程内缓存
func newTicketListCache(cfg config.RedisConfig) TicketListCache {
	ttl := time.Duration(cfg.TicketListTTL) * time.Second
	log := logger.WithComponent("cache")
	if !cfg.Enabled() {
		log.Info("未配置 Redis，使用进程内工单列表缓存")
		return NewMemoryTicketCache(ttl)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		log.Warn("连接 Redis 失败，使用进程内工单列表缓存", "addr", cfg.Addr(), "error", fmt.Errorf("ping: %w", err))
		client.Close()
		return NewMemoryTicketCache(ttl)
	}
	log.Info("工单列表缓存使用 Redis", "addr", cfg.Addr())
	return NewRedisTicketCache(client, ttl)
}
