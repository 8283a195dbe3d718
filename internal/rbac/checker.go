package rbac

import "strings"

// Checker answers coarse, per-role route permissions such as
// "course:create". Patterns may end in "*".
type Checker struct {
	perms map[Role][]string
}

func NewChecker(rp map[string][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	c := &Checker{perms: make(map[Role][]string, len(rp))}
	for role, list := range rp {
		c.perms[ParseRoleOrAnonymous(role)] = append([]string(nil), list...)
	}
	return c
}

// ParseRoleOrAnonymous is ParseRole that also accepts "anonymous".
func ParseRoleOrAnonymous(s string) Role {
	if Role(s) == RoleAnonymous {
		return RoleAnonymous
	}
	return ParseRole(s)
}

func (c *Checker) Has(role Role, perm string) bool {
	for _, p := range c.perms[role] {
		if matchPerm(p, perm) {
			return true
		}
	}
	return false
}

func (c *Checker) Any(role Role, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

func matchPerm(pattern, perm string) bool {
	if pattern == "*" || pattern == perm {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(perm, strings.TrimSuffix(pattern, "*"))
	}
	return false
}
