package service

import (
	"context"
	"time"

	"github.com/dujiao-next/affiliate/internal/cache"
	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/logger"
	"github.com/dujiao-next/affiliate/internal/models"
	"github.com/dujiao-next/affiliate/internal/repository"
)

const settingCacheTTL = time.Hour

// AffiliateConfigSource 推广配置来源（业务服务通过此接口读取配置）
type AffiliateConfigSource interface {
	GetAffiliateConfig(ctx context.Context) (AffiliateConfig, error)
	GetFraudRules(ctx context.Context) (FraudRules, error)
}

// SettingService 设置业务服务
type SettingService struct {
	repo repository.SettingRepository
}

// NewSettingService 创建设置服务
func NewSettingService(repo repository.SettingRepository) *SettingService {
	return &SettingService{repo: repo}
}

// GetByKey 获取设置
func (s *SettingService) GetByKey(key string) (models.JSON, error) {
	setting, err := s.repo.GetByKey(key)
	if err != nil {
		return nil, err
	}
	if setting == nil {
		return nil, nil
	}
	return setting.ValueJSON, nil
}

// Update 写入设置并失效配置缓存
func (s *SettingService) Update(ctx context.Context, key string, value map[string]interface{}) (models.JSON, error) {
	setting, err := s.repo.Upsert(key, models.JSON(value))
	if err != nil {
		return nil, err
	}
	if err := cache.InvalidateTag(ctx, constants.CacheTagSettings); err != nil {
		logger.Warnw("setting_cache_invalidate_failed", "key", key, "error", err)
	}
	return setting.ValueJSON, nil
}

// GetAffiliateConfig 获取推广计划配置（缓存 1 小时，更新时按标签失效）
func (s *SettingService) GetAffiliateConfig(ctx context.Context) (AffiliateConfig, error) {
	if s == nil {
		return AffiliateDefaultConfig(), nil
	}
	cacheKey := settingCacheKey(constants.SettingKeyAffiliateConfig)
	var cached AffiliateConfig
	if hit, err := cache.GetJSON(ctx, cacheKey, &cached); err != nil {
		logger.Warnw("setting_cache_read_failed", "key", cacheKey, "error", err)
	} else if hit {
		return NormalizeAffiliateConfig(cached), nil
	}

	value, err := s.GetByKey(constants.SettingKeyAffiliateConfig)
	if err != nil {
		return AffiliateDefaultConfig(), err
	}
	cfg := AffiliateDefaultConfig()
	if value != nil {
		cfg = affiliateConfigFromJSON(value, cfg)
	}
	if err := cache.SetJSONWithTags(ctx, cacheKey, cfg, settingCacheTTL, constants.CacheTagSettings); err != nil {
		logger.Warnw("setting_cache_write_failed", "key", cacheKey, "error", err)
	}
	return cfg, nil
}

// UpdateAffiliateConfig 更新推广计划配置
func (s *SettingService) UpdateAffiliateConfig(ctx context.Context, cfg AffiliateConfig) (AffiliateConfig, error) {
	if err := ValidateAffiliateConfig(cfg); err != nil {
		return AffiliateDefaultConfig(), err
	}
	normalized := NormalizeAffiliateConfig(cfg)
	if _, err := s.Update(ctx, constants.SettingKeyAffiliateConfig, AffiliateConfigToMap(normalized)); err != nil {
		return AffiliateDefaultConfig(), err
	}
	return normalized, nil
}

// GetFraudRules 获取风控规则（缓存 1 小时）
func (s *SettingService) GetFraudRules(ctx context.Context) (FraudRules, error) {
	if s == nil {
		return FraudDefaultRules(), nil
	}
	cacheKey := settingCacheKey(constants.SettingKeyFraudRules)
	var cached FraudRules
	if hit, err := cache.GetJSON(ctx, cacheKey, &cached); err != nil {
		logger.Warnw("setting_cache_read_failed", "key", cacheKey, "error", err)
	} else if hit {
		return NormalizeFraudRules(cached), nil
	}

	value, err := s.GetByKey(constants.SettingKeyFraudRules)
	if err != nil {
		return FraudDefaultRules(), err
	}
	rules := FraudDefaultRules()
	if value != nil {
		rules = fraudRulesFromJSON(value, rules)
	}
	if err := cache.SetJSONWithTags(ctx, cacheKey, rules, settingCacheTTL, constants.CacheTagSettings); err != nil {
		logger.Warnw("setting_cache_write_failed", "key", cacheKey, "error", err)
	}
	return rules, nil
}

// UpdateFraudRules 更新风控规则
func (s *SettingService) UpdateFraudRules(ctx context.Context, rules FraudRules) (FraudRules, error) {
	if err := ValidateFraudRules(rules); err != nil {
		return FraudDefaultRules(), err
	}
	normalized := NormalizeFraudRules(rules)
	if _, err := s.Update(ctx, constants.SettingKeyFraudRules, FraudRulesToMap(normalized)); err != nil {
		return FraudDefaultRules(), err
	}
	return normalized, nil
}

func settingCacheKey(key string) string {
	return "setting:" + key
}
