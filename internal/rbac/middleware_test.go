package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"call-router/internal/auth"

	"github.com/gin-gonic/gin"
)

func serve(t *testing.T, userID, role string, chain ...gin.HandlerFunc) int {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	handlers := []gin.HandlerFunc{func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), userID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}}
	handlers = append(handlers, chain...)
	handlers = append(handlers, func(c *gin.Context) { c.Status(200) })
	r.GET("/x", handlers...)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", nil))
	return w.Code
}

func TestRequireAnyRole_AdministratorBypasses(t *testing.T) {
	if code := serve(t, "u", RoleAdministrator, RequireUser(), RequireAnyRole(RoleSystemManager)); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_AgentDeniedManagerRoute(t *testing.T) {
	if code := serve(t, "u", RoleAgent, RequireUser(), RequireAnyRole(RoleSystemManager)); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_MissingRole(t *testing.T) {
	if code := serve(t, "u", "", RequireAnyRole(RoleAgent)); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestRequireUser_Required(t *testing.T) {
	if code := serve(t, "", RoleAgent, RequireUser(), RequireAnyRole(RoleAgent)); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestKnown(t *testing.T) {
	if !Known(RoleAgent) || Known("owner") {
		t.Fatalf("unexpected role table")
	}
}
