package storage

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	"resume-builder-go/internal/config"
)

// Storage 存储管理器，聚合所有存储相关依赖
type Storage struct {
	// 关系型数据库，必需
	MySQL *MySQL

	// 会话缓存，可选
	Redis *Redis

	// 导入原文归档，可选
	MinIO *MinIO

	// 简历事件发布，可选
	RabbitMQ *RabbitMQ
}

// NewStorage 创建存储管理器。MySQL失败直接返回错误，其余组件失败时降级运行
func NewStorage(ctx context.Context, cfg *config.Config) (*Storage, error) {
	if cfg == nil {
		return nil, fmt.Errorf("配置不能为空")
	}

	s := &Storage{}
	var err error

	exchange := ""
	if cfg.RabbitMQ.URL != "" {
		exchange = cfg.RabbitMQ.ResumeEventsExchange
	}
	s.MySQL, err = NewMySQL(&cfg.MySQL, exchange)
	if err != nil {
		return nil, fmt.Errorf("初始化MySQL失败: %w", err)
	}

	if cfg.Redis.Address != "" {
		s.Redis, err = NewRedisAdapter(&cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("初始化Redis失败，会话将直接查询MySQL")
		}
	} else {
		log.Info().Msg("Redis未配置, 跳过初始化")
	}

	if cfg.MinIO.Endpoint != "" {
		s.MinIO, err = NewMinIO(&cfg.MinIO)
		if err != nil {
			log.Warn().Err(err).Msg("初始化MinIO失败，导入原文将不会归档")
		}
	}

	if cfg.RabbitMQ.URL != "" {
		s.RabbitMQ, err = NewRabbitMQ(&cfg.RabbitMQ)
		if err != nil {
			// 发件箱仍会落库，中继在RabbitMQ可用后补发
			log.Warn().Err(err).Msg("初始化RabbitMQ失败")
		}
	}

	return s, nil
}

// Close 关闭所有连接
func (s *Storage) Close() {
	if s.RabbitMQ != nil {
		if err := s.RabbitMQ.Close(); err != nil {
			log.Error().Err(err).Msg("关闭RabbitMQ连接失败")
		}
	}
	if s.MySQL != nil {
		if err := s.MySQL.Close(); err != nil {
			log.Error().Err(err).Msg("关闭MySQL连接失败")
		}
	}
	if s.Redis != nil {
		if err := s.Redis.Close(); err != nil {
			log.Error().Err(err).Msg("关闭Redis连接失败")
		}
	}
}
