package user

import (
	"fmt"
	"strings"
)

// Role is ordered: a higher value carries every permission of the lower ones.
type Role int

const (
	RoleUser Role = iota + 1
	RoleModerator
	RoleAdmin
)

var roleNames = map[Role]string{
	RoleUser:      "USER",
	RoleModerator: "MODERATOR",
	RoleAdmin:     "ADMIN",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return fmt.Sprintf("Role(%d)", int(r))
}

func (r Role) Valid() bool {
	_, ok := roleNames[r]
	return ok
}

func (r Role) AtLeast(required Role) bool {
	return r.Valid() && required.Valid() && r >= required
}

func ParseRole(s string) (Role, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "USER":
		return RoleUser, nil
	case "MODERATOR":
		return RoleModerator, nil
	case "ADMIN":
		return RoleAdmin, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrInvalidUserRole, s)
}

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrInvalidUserRole, int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
