package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nexentia/backend/internal/authctx"
	"github.com/nexentia/backend/internal/models"
)

func newRoleRouter(min models.Role, ac *authctx.AuthContext) *gin.Engine {
	r := gin.New()
	r.GET("/gated",
		func(c *gin.Context) {
			if ac != nil {
				authctx.Set(c, *ac)
			}
		},
		RequireRole(min),
		func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) },
	)
	return r
}

func gatedRequest(t *testing.T, min models.Role, ac *authctx.AuthContext) *httptest.ResponseRecorder {
	t.Helper()
	router := newRoleRouter(min, ac)
	req := httptest.NewRequest(http.MethodGet, "/gated", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func memberContext(role models.Role) *authctx.AuthContext {
	return &authctx.AuthContext{
		User: authctx.Identity{UserID: uuid.New(), Email: "user@example.com"},
		Org:  authctx.OrgContext{OrganizationID: uuid.New(), Role: role},
	}
}

func TestRequireRole_MissingContext(t *testing.T) {
	w := gatedRequest(t, models.RoleViewer, nil)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if !strings.Contains(w.Body.String(), "missing_org_context") {
		t.Errorf("body = %s, want missing_org_context", w.Body.String())
	}
}

func TestRequireRole_NilOrg(t *testing.T) {
	ac := &authctx.AuthContext{User: authctx.Identity{UserID: uuid.New()}}
	w := gatedRequest(t, models.RoleViewer, ac)
	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want %d", w.Code, http.StatusForbidden)
	}
	if !strings.Contains(w.Body.String(), "missing_org_context") {
		t.Errorf("body = %s, want missing_org_context", w.Body.String())
	}
}

func TestRequireRole_RankOrdering(t *testing.T) {
	tests := []struct {
		name string
		min  models.Role
		role models.Role
		want int
	}{
		{"viewer at viewer gate", models.RoleViewer, models.RoleViewer, http.StatusOK},
		{"viewer at sales gate", models.RoleSales, models.RoleViewer, http.StatusForbidden},
		{"sales at sales gate", models.RoleSales, models.RoleSales, http.StatusOK},
		{"sales at finance gate", models.RoleFinance, models.RoleSales, http.StatusForbidden},
		{"admin at finance gate", models.RoleFinance, models.RoleAdmin, http.StatusOK},
		{"admin at owner gate", models.RoleOwner, models.RoleAdmin, http.StatusForbidden},
		{"owner at owner gate", models.RoleOwner, models.RoleOwner, http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := gatedRequest(t, tt.min, memberContext(tt.role))
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestRequireRole_FinanceAccountantInterchangeable(t *testing.T) {
	// The two billing roles rank equal, so a gate at one admits the other.
	if w := gatedRequest(t, models.RoleFinance, memberContext(models.RoleAccountant)); w.Code != http.StatusOK {
		t.Errorf("accountant at finance gate: status = %d, want %d", w.Code, http.StatusOK)
	}
	if w := gatedRequest(t, models.RoleAccountant, memberContext(models.RoleFinance)); w.Code != http.StatusOK {
		t.Errorf("finance at accountant gate: status = %d, want %d", w.Code, http.StatusOK)
	}
}
