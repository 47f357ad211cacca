package app

import (
	"os"
	"strings"
	"time"

	"github.com/dujiao-next/affiliate/internal/config"
	"github.com/dujiao-next/affiliate/internal/logger"

	"go.uber.org/zap"
)

const (
	ModeAll    = "all"
	ModeAPI    = "api"
	ModeWorker = "worker"

	defaultAdminUsername = "admin"
)

// DefaultAdmin 首次启动时初始化的管理员账号
type DefaultAdmin struct {
	Username string
	Password string
}

// Options 应用启动选项
type Options struct {
	Config          *config.Config
	Logger          *zap.SugaredLogger
	Signals         []os.Signal
	ShutdownTimeout time.Duration
	Mode            string
	DefaultAdmin    DefaultAdmin
}

// normalizeOptions 补齐默认参数
func normalizeOptions(opts Options) Options {
	if opts.Logger == nil {
		opts.Logger = logger.S()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 10 * time.Second
	}
	if opts.Mode == "" {
		opts.Mode = ModeAll
	}
	if strings.TrimSpace(opts.DefaultAdmin.Username) == "" {
		opts.DefaultAdmin.Username = defaultAdminUsername
	}
	return opts
}
