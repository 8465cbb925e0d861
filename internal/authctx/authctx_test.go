package authctx

import (
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nexentia/backend/internal/models"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestSetFromRoundtrip(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	want := AuthContext{
		User: Identity{UserID: uuid.New(), Email: "user@example.com"},
		Org:  OrgContext{OrganizationID: uuid.New(), Role: models.RoleFinance},
	}
	Set(c, want)

	got, ok := From(c)
	if !ok {
		t.Fatal("From() ok = false, want true")
	}
	if got != want {
		t.Errorf("From() = %+v, want %+v", got, want)
	}
}

func TestFromWithoutSet(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())

	got, ok := From(c)
	if ok {
		t.Errorf("From() ok = true, want false")
	}
	if got != (AuthContext{}) {
		t.Errorf("From() = %+v, want zero value", got)
	}
}

func TestFromWrongType(t *testing.T) {
	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	c.Set("auth_context", "not-an-auth-context")

	if _, ok := From(c); ok {
		t.Errorf("From() ok = true, want false for foreign value under the key")
	}
}
