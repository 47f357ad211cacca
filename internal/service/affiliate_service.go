package service

import (
	"context"
	"crypto/rand"
	"math/big"
	"strings"
	"time"

	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/logger"
	"github.com/dujiao-next/affiliate/internal/models"
	"github.com/dujiao-next/affiliate/internal/repository"
)

const affiliateCodeLength = 8

// AffiliateDetail 推广账户详情
type AffiliateDetail struct {
	Account *models.AffiliateAccount `json:"account"`
	Sponsor *models.AffiliateAccount `json:"sponsor"`
	Team    *TeamStats               `json:"team"`
}

// AffiliateService 推广账户管理服务
type AffiliateService struct {
	affiliateRepo repository.AffiliateRepository
	referralRepo  repository.ReferralRepository
	userRepo      repository.UserRepository
	network       *NetworkService
	systemLogs    *SystemLogService
}

// NewAffiliateService 创建推广账户管理服务
func NewAffiliateService(
	affiliateRepo repository.AffiliateRepository,
	referralRepo repository.ReferralRepository,
	userRepo repository.UserRepository,
	network *NetworkService,
	systemLogs *SystemLogService,
) *AffiliateService {
	return &AffiliateService{
		affiliateRepo: affiliateRepo,
		referralRepo:  referralRepo,
		userRepo:      userRepo,
		network:       network,
		systemLogs:    systemLogs,
	}
}

// Register 注册推广账户，未填写名称时取商城用户昵称
func (s *AffiliateService) Register(ctx context.Context, input RegisterInput) (*models.AffiliateAccount, error) {
	if strings.TrimSpace(input.Name) == "" && s.userRepo != nil && input.UserID != 0 {
		user, err := s.userRepo.GetByID(input.UserID)
		if err != nil {
			return nil, err
		}
		if user != nil {
			input.Name = strings.TrimSpace(user.DisplayName)
		}
	}
	return s.network.RegisterAffiliate(ctx, input)
}

// List 分页查询推广账户
func (s *AffiliateService) List(filter repository.AffiliateListFilter) ([]models.AffiliateAccount, int64, error) {
	if filter.Status != "" {
		filter.Status = strings.ToUpper(strings.TrimSpace(filter.Status))
	}
	return s.affiliateRepo.List(filter)
}

// GetDetail 获取账户、上级与团队统计
func (s *AffiliateService) GetDetail(ctx context.Context, id uint) (*AffiliateDetail, error) {
	account, err := s.affiliateRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAffiliateNotFound
	}
	sponsor, err := s.network.GetSponsor(ctx, id)
	if err != nil {
		return nil, err
	}
	team, err := s.network.TeamStats(ctx, id)
	if err != nil {
		return nil, err
	}
	return &AffiliateDetail{Account: account, Sponsor: sponsor, Team: team}, nil
}

// ListReferrals 分页查询推荐订单
func (s *AffiliateService) ListReferrals(filter repository.ReferralListFilter) ([]models.Referral, int64, error) {
	return s.referralRepo.List(filter)
}

// UpdateStatus 更新账户状态
func (s *AffiliateService) UpdateStatus(ctx context.Context, id uint, status string) (*models.AffiliateAccount, error) {
	normalized := strings.ToUpper(strings.TrimSpace(status))
	switch normalized {
	case constants.AffiliateStatusActive, constants.AffiliateStatusPending, constants.AffiliateStatusBanned:
	default:
		return nil, ErrAffiliateStatusInvalid
	}
	account, err := s.affiliateRepo.GetByID(id)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAffiliateNotFound
	}
	if account.Status == normalized {
		return account, nil
	}
	previous := account.Status
	if err := s.affiliateRepo.UpdateStatus(id, normalized, time.Now()); err != nil {
		return nil, err
	}
	account.Status = normalized
	logger.Infow("affiliate_status_updated", "affiliate_id", id, "from", previous, "to", normalized)
	if normalized == constants.AffiliateStatusBanned {
		s.systemLogs.Record(ctx, constants.SystemLogLevelWarn, "affiliate_admin", "推广账户被管理员封禁", models.JSON{
			"affiliate_id": id,
			"previous":     previous,
		})
	}
	return account, nil
}

func generateAffiliateCode() (string, error) {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	var builder strings.Builder
	builder.Grow(affiliateCodeLength)
	max := big.NewInt(int64(len(alphabet)))
	for i := 0; i < affiliateCodeLength; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		builder.WriteByte(alphabet[n.Int64()])
	}
	return builder.String(), nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}
