// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tablewise Contributors

package httpapi

import (
	"github.com/gobwas/glob"
	"github.com/samber/oops"

	"github.com/tablewise/staffauth/internal/auth"
	"github.com/tablewise/staffauth/internal/config"
)

type routeRule struct {
	pattern string
	matcher glob.Glob
	roles   []auth.Role
}

// RoutePolicy maps request paths to the roles allowed to reach them.
// Rules are checked in order and the first match wins.
type RoutePolicy struct {
	rules []routeRule
}

// NewRoutePolicy compiles rules. Patterns use '/' as the separator, so '*'
// matches one path segment and '**' any number.
func NewRoutePolicy(rules []config.RouteRule) (*RoutePolicy, error) {
	p := &RoutePolicy{rules: make([]routeRule, 0, len(rules))}
	for i, rule := range rules {
		g, err := glob.Compile(rule.Pattern, '/')
		if err != nil {
			return nil, oops.Code("POLICY_INVALID_PATTERN").
				With("index", i).
				With("pattern", rule.Pattern).
				Wrap(err)
		}
		roles := make([]auth.Role, 0, len(rule.Roles))
		for _, name := range rule.Roles {
			role, err := auth.ParseRole(name)
			if err != nil {
				return nil, oops.Code("POLICY_INVALID_ROLE").
					With("index", i).
					With("pattern", rule.Pattern).
					Wrap(err)
			}
			roles = append(roles, role)
		}
		p.rules = append(p.rules, routeRule{pattern: rule.Pattern, matcher: g, roles: roles})
	}
	return p, nil
}

// RolesFor returns the roles required for path and whether any rule matched.
func (p *RoutePolicy) RolesFor(path string) ([]auth.Role, bool) {
	if p == nil {
		return nil, false
	}
	for _, rule := range p.rules {
		if rule.matcher.Match(path) {
			return rule.roles, true
		}
	}
	return nil, false
}
