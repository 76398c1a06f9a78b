package plugin

import (
	"fmt"
	"strings"
)

// Role is a coarse tag used for ordering and selection policy only.
type Role int

const (
	RoleProcessing Role = iota
	RoleInput
	RoleValidation
	RoleAsset
	RoleExport
	RoleLogging
)

// Roles lists every role in inference precedence order, Processing last.
var Roles = []Role{RoleInput, RoleValidation, RoleAsset, RoleExport, RoleLogging, RoleProcessing}

var roleNames = map[Role]string{
	RoleProcessing: "processing",
	RoleInput:      "input",
	RoleValidation: "validation",
	RoleAsset:      "asset",
	RoleExport:     "export",
	RoleLogging:    "logging",
}

// roleTags maps capability prefixes to the role they imply.
var roleTags = map[string]Role{
	"input":      RoleInput,
	"validation": RoleValidation,
	"validate":   RoleValidation,
	"asset":      RoleAsset,
	"export":     RoleExport,
	"output":     RoleExport,
	"logging":    RoleLogging,
	"log":        RoleLogging,
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// ParseRole converts a role name (or one of its capability aliases) to a Role.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "processing" {
		return RoleProcessing, nil
	}
	if r, ok := roleTags[s]; ok {
		return r, nil
	}
	return RoleProcessing, fmt.Errorf("unknown plugin role '%s'", s)
}

// RoleOf infers a role from capability tags. Only the part before ':' is
// considered, so "export:foundry" implies Export. When several tags match,
// the earliest role in Roles wins.
func RoleOf(capabilities []string) Role {
	found := make(map[Role]bool)
	for _, c := range capabilities {
		prefix, _, _ := strings.Cut(strings.ToLower(strings.TrimSpace(c)), ":")
		if r, ok := roleTags[prefix]; ok {
			found[r] = true
		}
	}
	for _, r := range Roles {
		if found[r] {
			return r
		}
	}
	return RoleProcessing
}
