package models

import (
	"strings"
	"time"

	"github.com/trackerhq/tracker/internal/errs"
)

// Permission is an ordered membership level. Higher values include the
// rights of lower ones, so authorization is a plain >= comparison.
type Permission int

const (
	PermissionMember        Permission = 0
	PermissionModerator     Permission = 1
	PermissionAdministrator Permission = 2
)

var permissionNames = map[Permission]string{
	PermissionMember:        "MEMBER",
	PermissionModerator:     "MODERATOR",
	PermissionAdministrator: "ADMINISTRATOR",
}

func (p Permission) String() string {
	if name, ok := permissionNames[p]; ok {
		return name
	}
	return "UNKNOWN"
}

// Valid reports whether p is one of the defined permission levels.
func (p Permission) Valid() bool {
	_, ok := permissionNames[p]
	return ok
}

// ParsePermission resolves a caller-supplied permission level, accepting
// the same forms as ParseRelationType: a numeric ordinal or a symbolic
// name matched case-insensitively.
func ParsePermission(v any) (Permission, error) {
	switch val := v.(type) {
	case Permission:
		if val.Valid() {
			return val, nil
		}
	case int:
		if p := Permission(val); p.Valid() {
			return p, nil
		}
	case int64:
		if p := Permission(val); p.Valid() {
			return p, nil
		}
	case float64:
		if val == float64(int(val)) {
			if p := Permission(int(val)); p.Valid() {
				return p, nil
			}
		}
	case string:
		name := strings.ToUpper(strings.TrimSpace(val))
		name = strings.Join(strings.Fields(name), "_")
		for p, n := range permissionNames {
			if n == name {
				return p, nil
			}
		}
	}
	return 0, errs.BadRequestf("invalid permission: %v", v)
}

// ProjectMember joins a user to a project at a permission level. At most
// one membership exists per (user, project) pair.
type ProjectMember struct {
	ID             string     `json:"id"`
	ProjectID      string     `json:"projectId"`
	UserID         string     `json:"userId"`
	Permission     Permission `json:"permission"`
	PermissionName string     `json:"permissionName"`
	CreatedAt      time.Time  `json:"createdAt"`

	// Public profile of the member, populated on reads.
	User *User `json:"user,omitempty"`
}
