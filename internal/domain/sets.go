package domain

import (
	"slices"
	"sort"
	"strings"
)

// RoleSet is a sorted, de-duplicated set of roles.
type RoleSet []Role

func NewRoleSet(roles ...Role) RoleSet {
	out := make(RoleSet, 0, len(roles))
	for _, r := range roles {
		if r == "" || slices.Contains(out, r) {
			continue
		}
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (s RoleSet) Has(r Role) bool { return slices.Contains(s, r) }

func (s RoleSet) Strings() []string {
	out := make([]string, len(s))
	for i, r := range s {
		out[i] = string(r)
	}
	return out
}

// Equal compares as sets.
func (s RoleSet) Equal(o RoleSet) bool {
	return slices.Equal(NewRoleSet(s...), NewRoleSet(o...))
}

// StringSet is a sorted, de-duplicated set of principals (role names or
// emails). Values that look like emails are lower-cased.
type StringSet []string

func NewStringSet(values ...string) StringSet {
	out := make(StringSet, 0, len(values))
	for _, v := range values {
		v = normalizePrincipal(v)
		if v == "" || slices.Contains(out, v) {
			continue
		}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}

func (s StringSet) Has(v string) bool {
	v = normalizePrincipal(v)
	return v != "" && slices.Contains(s, v)
}

func (s StringSet) Union(others ...string) StringSet {
	all := append(append([]string{}, s...), others...)
	return NewStringSet(all...)
}

func (s StringSet) Equal(o StringSet) bool {
	return slices.Equal(NewStringSet(s...), NewStringSet(o...))
}

func normalizePrincipal(v string) string {
	v = strings.TrimSpace(v)
	if strings.Contains(v, "@") {
		return strings.ToLower(v)
	}
	return v
}
