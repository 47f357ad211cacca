package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dujiao-next/affiliate/internal/constants"
	"github.com/dujiao-next/affiliate/internal/logger"
	"github.com/dujiao-next/affiliate/internal/models"
	"github.com/dujiao-next/affiliate/internal/repository"

	"gorm.io/gorm"
)

const affiliateSlugMaxAttempts = 5

// RegisterInput 推广账户注册参数
type RegisterInput struct {
	UserID       uint   `json:"user_id"`
	Name         string `json:"name"`
	ReferralCode string `json:"referral_code"`
}

// NetworkNode 网络树节点
type NetworkNode struct {
	ID         uint           `json:"id"`
	Name       string         `json:"name"`
	Slug       string         `json:"slug"`
	Level      int            `json:"level"`
	TotalSales models.Money   `json:"total_sales"`
	Children   []*NetworkNode `json:"children"`
}

// TeamStats 团队统计
type TeamStats struct {
	AffiliateID   uint         `json:"affiliate_id"`
	DirectCount   int          `json:"direct_count"`
	TotalDownline int64        `json:"total_downline"`
	TeamEarnings  models.Money `json:"team_earnings"`
}

// NetworkService MLM 网络服务
type NetworkService struct {
	affiliateRepo repository.AffiliateRepository
	configSource  AffiliateConfigSource
	maxDepth      int
}

// NewNetworkService 创建 MLM 网络服务
func NewNetworkService(affiliateRepo repository.AffiliateRepository, configSource AffiliateConfigSource, maxDepth int) *NetworkService {
	if maxDepth <= 0 {
		maxDepth = constants.MLMDefaultMaxDepth
	}
	return &NetworkService{
		affiliateRepo: affiliateRepo,
		configSource:  configSource,
		maxDepth:      maxDepth,
	}
}

// BuildMLMPath 生成物化路径：根账户为 root.<userID>，否则为上级路径追加 userID
func BuildMLMPath(parent *models.AffiliateAccount, userID uint) string {
	if parent == nil {
		return fmt.Sprintf("%s.%d", constants.MLMRootPath, userID)
	}
	return fmt.Sprintf("%s.%d", parent.MLMPath, userID)
}

func isDescendantPath(path, ancestorPath string) bool {
	if ancestorPath == "" {
		return false
	}
	return strings.HasPrefix(path, ancestorPath+".")
}

// RegisterAffiliate 注册推广账户并挂载到推荐人下（推荐码无效时挂到根）
func (s *NetworkService) RegisterAffiliate(ctx context.Context, input RegisterInput) (*models.AffiliateAccount, error) {
	if input.UserID == 0 {
		return nil, fmt.Errorf("%w: user_id 不能为空", ErrAffiliateInputInvalid)
	}
	existing, err := s.affiliateRepo.GetByUserID(input.UserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return nil, ErrAffiliateExists
	}
	cfg, err := s.configSource.GetAffiliateConfig(ctx)
	if err != nil {
		return nil, err
	}

	parent, err := s.resolveSponsor(input.UserID, input.ReferralCode)
	if err != nil {
		return nil, err
	}

	status := constants.AffiliateStatusPending
	if cfg.AutoApproveAffiliates {
		status = constants.AffiliateStatusActive
	}
	name := strings.TrimSpace(input.Name)
	if name == "" {
		name = fmt.Sprintf("affiliate-%d", input.UserID)
	}
	account := &models.AffiliateAccount{
		UserID:         input.UserID,
		Name:           name,
		Balance:        models.ZeroMoney(),
		TotalEarnings:  models.ZeroMoney(),
		CommissionRate: cfg.DefaultCommissionRate,
		CommissionType: cfg.DefaultCommissionType,
		MLMPath:        BuildMLMPath(parent, input.UserID),
		Status:         status,
		RiskFlags:      models.StringList{},
	}
	if parent != nil {
		account.ParentID = &parent.ID
		account.MLMLevel = parent.MLMLevel + 1
	}

	for attempt := 0; attempt < affiliateSlugMaxAttempts; attempt++ {
		slug, err := generateAffiliateCode()
		if err != nil {
			return nil, err
		}
		account.Slug = slug
		err = s.affiliateRepo.Create(account)
		if err == nil {
			logger.Infow("affiliate_registered",
				"affiliate_id", account.ID,
				"user_id", account.UserID,
				"parent_id", account.ParentID,
				"mlm_path", account.MLMPath,
				"status", account.Status,
			)
			return account, nil
		}
		if !isUniqueViolation(err) {
			return nil, err
		}
		if dup, lookupErr := s.affiliateRepo.GetByUserID(input.UserID); lookupErr == nil && dup != nil {
			return nil, ErrAffiliateExists
		}
		account.ID = 0
	}
	return nil, ErrSlugGenerateFailed
}

// resolveSponsor 推荐码无效、账户非 ACTIVE、自推荐或层级超限时返回 nil（挂到根）
func (s *NetworkService) resolveSponsor(userID uint, referralCode string) (*models.AffiliateAccount, error) {
	code := strings.ToUpper(strings.TrimSpace(referralCode))
	if code == "" {
		return nil, nil
	}
	parent, err := s.affiliateRepo.GetBySlug(code)
	if err != nil {
		return nil, err
	}
	switch {
	case parent == nil:
		logger.Debugw("affiliate_sponsor_not_found", "user_id", userID, "referral_code", code)
		return nil, nil
	case parent.Status != constants.AffiliateStatusActive:
		logger.Infow("affiliate_sponsor_inactive", "user_id", userID, "sponsor_id", parent.ID, "status", parent.Status)
		return nil, nil
	case parent.UserID == userID:
		logger.Warnw("affiliate_self_referral_rejected", "user_id", userID, "sponsor_id", parent.ID)
		return nil, nil
	case parent.MLMLevel+1 >= s.maxDepth:
		logger.Warnw("affiliate_sponsor_depth_exceeded", "user_id", userID, "sponsor_id", parent.ID, "max_depth", s.maxDepth)
		return nil, nil
	}
	return parent, nil
}

// ChangeSponsor 调整上级（newParentID 为 0 表示挂到根），拒绝环路并重写子树路径
func (s *NetworkService) ChangeSponsor(ctx context.Context, affiliateID uint, newParentID uint) (*models.AffiliateAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if affiliateID == newParentID {
		return nil, fmt.Errorf("%w: 不能将自己设为上级", ErrSponsorCycle)
	}
	var updated *models.AffiliateAccount
	err := s.affiliateRepo.Transaction(func(tx *gorm.DB) error {
		repo := s.affiliateRepo.WithTx(tx)
		account, err := repo.GetByIDForUpdate(affiliateID)
		if err != nil {
			return err
		}
		if account == nil {
			return ErrAffiliateNotFound
		}

		var parent *models.AffiliateAccount
		if newParentID != 0 {
			parent, err = repo.GetByID(newParentID)
			if err != nil {
				return err
			}
			if parent == nil || parent.Status == constants.AffiliateStatusBanned {
				return ErrSponsorInvalid
			}
			if isDescendantPath(parent.MLMPath, account.MLMPath) {
				return fmt.Errorf("%w: 不能将下级设为上级", ErrSponsorCycle)
			}
		}

		descendants, err := repo.ListDescendants(account.MLMPath)
		if err != nil {
			return err
		}
		subtreeDepth := 0
		for _, d := range descendants {
			if rel := d.MLMLevel - account.MLMLevel; rel > subtreeDepth {
				subtreeDepth = rel
			}
		}
		newLevel := 0
		if parent != nil {
			newLevel = parent.MLMLevel + 1
		}
		if newLevel+subtreeDepth >= s.maxDepth {
			return fmt.Errorf("%w: 最大 %d 层", ErrMLMDepthExceeded, s.maxDepth)
		}

		now := time.Now()
		oldPath := account.MLMPath
		newPath := BuildMLMPath(parent, account.UserID)
		var parentID *uint
		if parent != nil {
			parentID = &parent.ID
		}
		if err := repo.UpdatePlacement(account.ID, parentID, newPath, newLevel, now); err != nil {
			return err
		}
		for _, d := range descendants {
			descPath := newPath + strings.TrimPrefix(d.MLMPath, oldPath)
			descLevel := d.MLMLevel - account.MLMLevel + newLevel
			if err := repo.UpdatePlacement(d.ID, d.ParentID, descPath, descLevel, now); err != nil {
				return err
			}
		}
		account.ParentID = parentID
		account.MLMPath = newPath
		account.MLMLevel = newLevel
		updated = account
		logger.Infow("affiliate_sponsor_changed",
			"affiliate_id", account.ID,
			"parent_id", parentID,
			"old_path", oldPath,
			"new_path", newPath,
			"subtree_size", len(descendants),
		)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// GetSponsor 获取上级账户，根账户返回 nil
func (s *NetworkService) GetSponsor(ctx context.Context, affiliateID uint) (*models.AffiliateAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	account, err := s.affiliateRepo.GetByID(affiliateID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAffiliateNotFound
	}
	if account.ParentID == nil {
		return nil, nil
	}
	return s.affiliateRepo.GetByID(*account.ParentID)
}

// GetNetworkTree 逐层展开下级，最多 3 层
func (s *NetworkService) GetNetworkTree(ctx context.Context, affiliateID uint) (*NetworkNode, error) {
	account, err := s.affiliateRepo.GetByID(affiliateID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAffiliateNotFound
	}
	root := newNetworkNode(*account, 0)
	frontier := map[uint]*NetworkNode{account.ID: root}
	visited := map[uint]struct{}{account.ID: {}}

	for depth := 1; depth <= constants.MLMTreeMaxDepth && len(frontier) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		parentIDs := make([]uint, 0, len(frontier))
		for id := range frontier {
			parentIDs = append(parentIDs, id)
		}
		children, err := s.affiliateRepo.ListChildren(parentIDs)
		if err != nil {
			return nil, err
		}
		next := make(map[uint]*NetworkNode, len(children))
		for _, child := range children {
			if child.ParentID == nil {
				continue
			}
			if _, seen := visited[child.ID]; seen {
				continue
			}
			parentNode, ok := frontier[*child.ParentID]
			if !ok {
				continue
			}
			visited[child.ID] = struct{}{}
			node := newNetworkNode(child, depth)
			parentNode.Children = append(parentNode.Children, node)
			next[child.ID] = node
		}
		frontier = next
	}
	return root, nil
}

func newNetworkNode(account models.AffiliateAccount, level int) *NetworkNode {
	return &NetworkNode{
		ID:         account.ID,
		Name:       account.Name,
		Slug:       account.Slug,
		Level:      level,
		TotalSales: account.TotalEarnings,
		Children:   []*NetworkNode{},
	}
}

// ListUpline 由近及远返回上级链，最多 levels 层
func (s *NetworkService) ListUpline(ctx context.Context, affiliateID uint, levels int) ([]models.AffiliateAccount, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return listUpline(s.affiliateRepo, affiliateID, levels)
}

func listUpline(repo repository.AffiliateRepository, affiliateID uint, levels int) ([]models.AffiliateAccount, error) {
	result := make([]models.AffiliateAccount, 0, levels)
	if levels <= 0 {
		return result, nil
	}
	current, err := repo.GetByID(affiliateID)
	if err != nil {
		return nil, err
	}
	if current == nil {
		return nil, ErrAffiliateNotFound
	}
	visited := map[uint]struct{}{current.ID: {}}
	for len(result) < levels && current.ParentID != nil {
		if _, seen := visited[*current.ParentID]; seen {
			logger.Errorw("affiliate_upline_cycle_detected", "affiliate_id", affiliateID, "parent_id", *current.ParentID)
			break
		}
		parent, err := repo.GetByID(*current.ParentID)
		if err != nil {
			return nil, err
		}
		if parent == nil {
			break
		}
		visited[parent.ID] = struct{}{}
		result = append(result, *parent)
		current = parent
	}
	return result, nil
}

// TeamStats 直属人数、全部下级人数与团队累计收益
func (s *NetworkService) TeamStats(ctx context.Context, affiliateID uint) (*TeamStats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	account, err := s.affiliateRepo.GetByID(affiliateID)
	if err != nil {
		return nil, err
	}
	if account == nil {
		return nil, ErrAffiliateNotFound
	}
	children, err := s.affiliateRepo.ListChildren([]uint{account.ID})
	if err != nil {
		return nil, err
	}
	total, err := s.affiliateRepo.CountDescendants(account.MLMPath)
	if err != nil {
		return nil, err
	}
	earnings, err := s.affiliateRepo.SumDescendantEarnings(account.MLMPath)
	if err != nil {
		return nil, err
	}
	return &TeamStats{
		AffiliateID:   account.ID,
		DirectCount:   len(children),
		TotalDownline: total,
		TeamEarnings:  earnings,
	}, nil
}
