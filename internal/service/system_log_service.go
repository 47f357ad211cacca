package service

import (
	"context"
	"strings"
	"time"

	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/logger"
	"github.com/dujiao-next/affiliate/internal/models"
	"github.com/dujiao-next/affiliate/internal/repository"
)

const systemLogMessageMaxLen = 1024

// SystemLogService 系统日志服务（业务告警落库，同时写 zap）
type SystemLogService struct {
	repo repository.SystemLogRepository
}

// NewSystemLogService 创建系统日志服务
func NewSystemLogService(repo repository.SystemLogRepository) *SystemLogService {
	return &SystemLogService{repo: repo}
}

// Record 记录一条系统日志，落库失败只写 zap 不向上返回
func (s *SystemLogService) Record(ctx context.Context, level, source, message string, fields models.JSON) {
	level = strings.ToUpper(strings.TrimSpace(level))
	if level == "" {
		level = constants.SystemLogLevelInfo
	}
	if len(message) > systemLogMessageMaxLen {
		message = message[:systemLogMessageMaxLen]
	}
	kv := []interface{}{"source", source, "message", message}
	for k, v := range fields {
		kv = append(kv, k, v)
	}
	switch level {
	case constants.SystemLogLevelCritical, constants.SystemLogLevelError:
		logger.Errorw("system_log", kv...)
	case constants.SystemLogLevelWarn:
		logger.Warnw("system_log", kv...)
	default:
		logger.Infow("system_log", kv...)
	}

	if s == nil || s.repo == nil {
		return
	}
	entry := &models.SystemLog{
		Level:     level,
		Source:    strings.TrimSpace(source),
		Message:   message,
		Context:   fields,
		CreatedAt: time.Now(),
	}
	if err := s.repo.Create(entry); err != nil {
		logger.Errorw("system_log_persist_failed", "source", source, "error", err)
	}
}

// List 分页查询系统日志
func (s *SystemLogService) List(filter repository.SystemLogListFilter) ([]models.SystemLog, int64, error) {
	if filter.Level != "" {
		filter.Level = strings.ToUpper(strings.TrimSpace(filter.Level))
	}
	return s.repo.List(filter)
}
