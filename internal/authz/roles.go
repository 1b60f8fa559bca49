package authz

import "errors"

// Role всегда берётся из валидированной сессии, никогда из клиентских
// cookie/флагов (их можно подделать).
type Role string

const (
	RoleUser       Role = "user"
	RoleAdmin      Role = "admin"
	RoleDoctor     Role = "doctor"
	RoleResearcher Role = "researcher"
)

var ErrForbidden = errors.New("forbidden")

func ParseRole(s string) (Role, bool) {
	switch Role(s) {
	case RoleUser, RoleAdmin, RoleDoctor, RoleResearcher:
		return Role(s), true
	}
	return "", false
}

func IsElevated(r Role) bool {
	return r == RoleAdmin || r == RoleDoctor || r == RoleResearcher
}

// RequireRole — чистая проверка над уже разрешённой сессией, хранилище не трогает.
func RequireRole(have Role, want Role) error {
	if have != want {
		return ErrForbidden
	}
	return nil
}

// RequireAnyRole пропускает, если роль входит в список.
func RequireAnyRole(have Role, allowed ...Role) error {
	for _, r := range allowed {
		if have == r {
			return nil
		}
	}
	return ErrForbidden
}
