package app

import (
	"errors"

	"github.com/dujiao-next/affiliate/internal/config"
	"github.com/dujiao-next/affiliate/internal/logger"
	"github.com/dujiao-next/affiliate/internal/provider"
	"github.com/dujiao-next/affiliate/internal/router"
	"github.com/dujiao-next/affiliate/internal/worker"
)

// BuildRunner 构建服务运行器
func BuildRunner(cfg *config.Config, mode string, admin DefaultAdmin) (*Runner, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}

	container := provider.NewContainer(cfg)
	ensureDefaultAdmin(cfg, container, admin)

	var services []Service

	// 初始化 HTTP 服务
	if mode == ModeAll || mode == ModeAPI {
		engine := router.SetupRouter(cfg, container)
		services = append(services, NewHTTPService(cfg.Server, engine))
	}

	// 初始化 Worker 服务（队列关闭时订单在请求内同步处理）
	if mode == ModeAll || mode == ModeWorker {
		if cfg.Queue.Enabled {
			workerService, err := worker.NewService(&cfg.Queue, worker.NewConsumer(container))
			if err != nil {
				return nil, err
			}
			services = append(services, workerService)
		}
		if cfg.Cron.Enabled {
			scheduler, err := worker.NewScheduler(cfg.Cron, container.AffiliateCheckService, container.Metrics)
			if err != nil {
				return nil, err
			}
			services = append(services, scheduler)
		}
	}

	if len(services) == 0 {
		return nil, errors.New("no services initialized (check mode and config)")
	}

	return NewRunner(services...), nil
}

func ensureDefaultAdmin(cfg *config.Config, container *provider.Container, admin DefaultAdmin) {
	if container == nil || container.AuthService == nil {
		return
	}
	if cfg.Server.Mode == "release" && admin.Password == "" {
		logger.Warnw("app_default_admin_skipped", "reason", "password_not_set")
		return
	}
	if _, err := container.AuthService.EnsureDefaultAdmin(admin.Username, admin.Password); err != nil {
		logger.Warnw("app_default_admin_failed", "error", err)
	}
}

// Run 应用启动入口
func Run(opts Options) error {
	opts = normalizeOptions(opts)
	if opts.Config == nil {
		return errors.New("config is nil")
	}

	runner, err := BuildRunner(opts.Config, opts.Mode, opts.DefaultAdmin)
	if err != nil {
		return err
	}

	addr := opts.Config.Server.Host + ":" + opts.Config.Server.Port
	opts.Logger.Infow("app_start", "addr", addr, "mode", opts.Mode)
	return RunWithOptions(runner, opts)
}
