package services

import "github.com/dmitrijs2005/payslips/internal/server/models"

// EffectiveFilter applies the caller's role to a requested filter. Employees
// are always narrowed to their own records; a mismatched employee_id is
// overridden rather than rejected. Other roles get the filter as supplied.
func EffectiveFilter(who models.Identity, requested models.Filter) models.Filter {
	f := requested
	if who.Role == models.RoleEmployee {
		own := who.EmployeeID
		f.EmployeeID = &own
	}
	return f
}

// Paginate normalises skip/limit: negative skip becomes 0, a non-positive
// limit becomes def, and anything above max is clamped.
func Paginate(f models.Filter, def, maxLimit int) models.Filter {
	if f.Skip < 0 {
		f.Skip = 0
	}
	if f.Limit <= 0 {
		f.Limit = def
	}
	if maxLimit > 0 && f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	return f
}

// CanIngest reports whether role may upload payslips.
func CanIngest(role models.Role) bool {
	return role == models.RoleHRManager || role == models.RoleAdministrator
}

// CanDelete reports whether role may delete payslips.
func CanDelete(role models.Role) bool {
	return role == models.RoleHRManager || role == models.RoleAdministrator
}

// canSee is the single-record visibility rule.
func canSee(who models.Identity, p *models.Payslip) bool {
	if who.Role == models.RoleEmployee {
		return p.EmployeeID == who.EmployeeID
	}
	return true
}
