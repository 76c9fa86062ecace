package review

import (
	"github.com/wilson323/zk-agent-sub004/internal/model"
	"github.com/wilson323/zk-agent-sub004/internal/severity"
)

// securityRoles may sign off entries carrying critical or high violations.
var securityRoles = map[model.ReviewerRole]struct{}{
	model.RoleSecuritySpecialist: {},
	model.RoleSecurityArchitect:  {},
}

// seniorRoles may sign off everything else.
var seniorRoles = map[model.ReviewerRole]struct{}{
	model.RoleSeniorDeveloper:    {},
	model.RoleTechLead:           {},
	model.RoleSecuritySpecialist: {},
	model.RoleSecurityArchitect:  {},
}

// approvalSatisfied reports whether the entry's accumulated approvals meet
// the role policy: security-specialist level for critical/high content,
// senior-developer-or-above otherwise. Only decision=approved approvals
// count.
func approvalSatisfied(entry model.ReviewTrackingEntry) bool {
	needSecurity := entry.HasSeverity(func(s string) bool {
		return severity.MeetsOrAbove(s, "high")
	})

	required := seniorRoles
	if needSecurity {
		required = securityRoles
	}
	for _, a := range entry.Approvals {
		if a.Decision != model.DecisionApproved {
			continue
		}
		if _, ok := required[a.Role]; ok {
			return true
		}
	}
	return false
}
