package api

import (
	"crypto/subtle"
	"fmt"
	"net/http"

	"github.com/AaronLay10/AssemblyEngine/internal/config"
)

// Role represents an authorization role.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleOperator Role = "operator"
)

// Auth holds basic-auth credentials. The zero value disables
// authentication and grants admin to every request.
type Auth struct {
	AdminUser    string
	AdminPass    string
	OperatorUser string
	OperatorPass string
}

// LoadAuth reads credentials from ASSEMBLY_ADMIN_USER, ASSEMBLY_ADMIN_PASS,
// ASSEMBLY_OPERATOR_USER and ASSEMBLY_OPERATOR_PASS, each honoring the
// *_FILE convention.
func LoadAuth() (*Auth, error) {
	a := &Auth{}
	for _, v := range []struct {
		env string
		dst *string
	}{
		{"ASSEMBLY_ADMIN_USER", &a.AdminUser},
		{"ASSEMBLY_ADMIN_PASS", &a.AdminPass},
		{"ASSEMBLY_OPERATOR_USER", &a.OperatorUser},
		{"ASSEMBLY_OPERATOR_PASS", &a.OperatorPass},
	} {
		s, err := config.ResolveSecret(v.env)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", v.env, err)
		}
		*v.dst = s
	}
	return a, nil
}

// Enabled reports whether admin credentials are configured.
func (a *Auth) Enabled() bool {
	return a != nil && a.AdminUser != "" && a.AdminPass != ""
}

// authenticate returns the role of the request, or "" when the
// credentials are missing or wrong.
func (a *Auth) authenticate(r *http.Request) Role {
	if !a.Enabled() {
		return RoleAdmin
	}

	user, pass, ok := r.BasicAuth()
	if !ok {
		return ""
	}
	if secureCompare(user, a.AdminUser) && secureCompare(pass, a.AdminPass) {
		return RoleAdmin
	}
	if a.OperatorUser != "" && a.OperatorPass != "" &&
		secureCompare(user, a.OperatorUser) && secureCompare(pass, a.OperatorPass) {
		return RoleOperator
	}
	return ""
}

func secureCompare(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func requireAuth(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", `Basic realm="Assembly Engine"`)
	http.Error(w, "Unauthorized", http.StatusUnauthorized)
}

// RequireRole wraps a handler and requires one of the specified roles.
func (a *Auth) RequireRole(handler http.HandlerFunc, allowedRoles ...Role) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		role := a.authenticate(r)
		if role == "" {
			requireAuth(w)
			return
		}
		for _, allowed := range allowedRoles {
			if role == allowed {
				handler(w, r)
				return
			}
		}
		http.Error(w, "Forbidden", http.StatusForbidden)
	}
}

// RequireAnyRole wraps a handler requiring admin or operator role.
func (a *Auth) RequireAnyRole(handler http.HandlerFunc) http.HandlerFunc {
	return a.RequireRole(handler, RoleAdmin, RoleOperator)
}

// RequireAdmin wraps a handler requiring admin role only.
func (a *Auth) RequireAdmin(handler http.HandlerFunc) http.HandlerFunc {
	return a.RequireRole(handler, RoleAdmin)
}
