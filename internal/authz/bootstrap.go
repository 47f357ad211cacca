package authz

import "fmt"

// RoleSeed 预置角色定义
type RoleSeed struct {
	Role     string
	Inherits []string
	Policies []Policy
}

// 预置角色
const (
	RoleReadonlyAuditor     = "readonly_auditor"
	RoleAffiliateOperations = "affiliate_operations"
	RoleFinance             = "finance"
)

// BuiltinRoleSeeds 推广后台预置角色矩阵
func BuiltinRoleSeeds() []RoleSeed {
	return []RoleSeed{
		{
			Role: RoleReadonlyAuditor,
			Policies: []Policy{
				{Object: "/admin/*", Action: "GET"},
				{Object: "/admin/commission/preview", Action: "POST"},
			},
		},
		{
			Role:     RoleAffiliateOperations,
			Inherits: []string{RoleReadonlyAuditor},
			Policies: []Policy{
				{Object: "/admin/commission-rules", Action: "*"},
				{Object: "/admin/commission-rules/:id", Action: "*"},
				{Object: "/admin/tiers", Action: "*"},
				{Object: "/admin/tiers/:id", Action: "*"},
				{Object: "/admin/affiliates/:id/status", Action: "PUT"},
				{Object: "/admin/affiliates/:id/sponsor", Action: "PUT"},
				{Object: "/admin/affiliates/:id/rescore", Action: "POST"},
				{Object: "/admin/settings/fraud", Action: "PUT"},
			},
		},
		{
			Role:     RoleFinance,
			Inherits: []string{RoleReadonlyAuditor},
			Policies: []Policy{
				{Object: "/admin/affiliates/:id/adjustments", Action: "POST"},
				{Object: "/admin/affiliates/:id/payout", Action: "POST"},
				{Object: "/admin/settings/affiliate", Action: "PUT"},
			},
		},
	}
}

// BootstrapBuiltinRoles 初始化预置角色与默认策略
func (s *Service) BootstrapBuiltinRoles() error {
	if s == nil || s.enforcer == nil {
		return fmt.Errorf("authz service unavailable")
	}

	changed := false
	for _, seed := range BuiltinRoleSeeds() {
		role, err := NormalizeRole(seed.Role)
		if err != nil {
			return err
		}

		exists, err := s.enforcer.HasNamedGroupingPolicy("g", role, roleAnchor)
		if err != nil {
			return fmt.Errorf("check builtin role failed: %w", err)
		}
		if !exists {
			added, err := s.enforcer.AddNamedGroupingPolicy("g", role, roleAnchor)
			if err != nil {
				return fmt.Errorf("create builtin role failed: %w", err)
			}
			if added {
				changed = true
			}
		}

		for _, parent := range seed.Inherits {
			parentRole, err := NormalizeRole(parent)
			if err != nil {
				return err
			}
			added, err := s.enforcer.AddNamedGroupingPolicy("g", role, parentRole)
			if err != nil {
				return fmt.Errorf("link role inheritance failed: %w", err)
			}
			if added {
				changed = true
			}
		}

		for _, policy := range seed.Policies {
			action := NormalizeAction(policy.Action)
			if action == "" {
				return fmt.Errorf("builtin policy action is required")
			}
			added, err := s.enforcer.AddPolicy(role, NormalizeObject(policy.Object), action)
			if err != nil {
				return fmt.Errorf("add builtin policy failed: %w", err)
			}
			if added {
				changed = true
			}
		}
	}

	if changed {
		return s.saveAndReload()
	}
	return nil
}
