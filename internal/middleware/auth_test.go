package middleware

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/AndrewYakovlev/aso-store/internal/models"
	"github.com/AndrewYakovlev/aso-store/pkg/utils"
)

const testCookie = "auth-token"

func newSessionApp(t *testing.T) (*fiber.App, *utils.TokenCodec) {
	t.Helper()

	tokens := utils.NewTokenCodec("test-secret", time.Hour)
	mw := NewSessionMiddleware(DefaultSessionConfig(testCookie), tokens, zap.NewNop())

	app := fiber.New()
	app.Use(mw.Handler())

	echo := func(c *fiber.Ctx) error {
		id, ok := CurrentIdentity(c)
		if !ok {
			return c.JSON(fiber.Map{
				"identity": false,
				"header":   c.Get("x-user-id"),
			})
		}
		fromCtx, _ := IdentityFromContext(c.UserContext())
		return c.JSON(fiber.Map{
			"identity": true,
			"userId":   id.UserID.String(),
			"role":     string(id.Role),
			"ctxUser":  fromCtx.UserID.String(),
			"header":   c.Get("x-user-id"),
		})
	}
	app.Get("/api/v1/auth/send-otp", echo)
	app.Get("/api/v1/auth/me", echo)
	app.Get("/api/v1/admin/users", echo)
	app.Get("/api/v1/products/:id", echo)
	app.Get("/profile", echo)
	app.Get("/panel", echo)
	app.Get("/panelx", echo)

	return app, tokens
}

func signToken(t *testing.T, tokens *utils.TokenCodec, role models.Role) (string, uuid.UUID) {
	t.Helper()
	userID := uuid.New()
	token, err := tokens.Sign(utils.SessionPayload{UserID: userID.String(), Role: string(role)})
	require.NoError(t, err)
	return token, userID
}

func doRequest(t *testing.T, app *fiber.App, path, token string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: testCookie, Value: token})
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	return resp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestSession_PublicPathPassesWithoutToken(t *testing.T) {
	app, _ := newSessionApp(t)

	resp := doRequest(t, app, "/api/v1/auth/send-otp", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"identity":false,"header":""}`, readBody(t, resp))
}

func TestSession_APIWithoutTokenIsUnauthorized(t *testing.T) {
	app, _ := newSessionApp(t)

	resp := doRequest(t, app, "/api/v1/auth/me", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Unauthorized"}`, readBody(t, resp))
}

func TestSession_APIWithInvalidTokenIsUnauthorized(t *testing.T) {
	app, _ := newSessionApp(t)

	other := utils.NewTokenCodec("other-secret", time.Hour)
	token, _ := signToken(t, other, models.RoleAdmin)

	for _, tok := range []string{"garbage", token} {
		resp := doRequest(t, app, "/api/v1/auth/me", tok)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		assert.JSONEq(t, `{"error":"Unauthorized"}`, readBody(t, resp))
	}
}

func TestSession_PageRedirectsToLogin(t *testing.T) {
	app, _ := newSessionApp(t)

	resp := doRequest(t, app, "/profile", "")
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/?redirect=%2Fprofile", resp.Header.Get("Location"))
}

func TestSession_StaffPaths(t *testing.T) {
	app, tokens := newSessionApp(t)

	customer, _ := signToken(t, tokens, models.RoleCustomer)
	resp := doRequest(t, app, "/api/v1/admin/users", customer)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.JSONEq(t, `{"error":"Forbidden"}`, readBody(t, resp))

	resp = doRequest(t, app, "/panel", customer)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	for _, role := range []models.Role{models.RoleManager, models.RoleAdmin} {
		token, userID := signToken(t, tokens, role)
		resp := doRequest(t, app, "/api/v1/admin/users", token)
		require.Equal(t, http.StatusOK, resp.StatusCode, role)
		body := readBody(t, resp)
		assert.Contains(t, body, userID.String())
		assert.Contains(t, body, string(role))
	}
}

func TestSession_InjectsIdentityOnProtectedPath(t *testing.T) {
	app, tokens := newSessionApp(t)
	token, userID := signToken(t, tokens, models.RoleCustomer)

	resp := doRequest(t, app, "/api/v1/auth/me", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t,
		`{"identity":true,"userId":"`+userID.String()+`","role":"CUSTOMER","ctxUser":"`+userID.String()+`","header":""}`,
		readBody(t, resp))
}

func TestSession_StripsSpoofedHeaders(t *testing.T) {
	app, _ := newSessionApp(t)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/products/abc", nil)
	req.Header.Set("x-user-id", uuid.NewString())
	req.Header.Set("x-user-role", "ADMIN")
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"identity":false,"header":""}`, readBody(t, resp))
}

func TestSession_OptionalIdentityOnOpenPaths(t *testing.T) {
	app, tokens := newSessionApp(t)
	token, userID := signToken(t, tokens, models.RoleCustomer)

	resp := doRequest(t, app, "/api/v1/products/abc", token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, readBody(t, resp), userID.String())

	// невалидный токен на открытом пути не мешает запросу
	resp = doRequest(t, app, "/api/v1/products/abc", "garbage")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"identity":false,"header":""}`, readBody(t, resp))
}

func TestSession_PrefixMatchesWholeSegments(t *testing.T) {
	app, _ := newSessionApp(t)

	resp := doRequest(t, app, "/panelx", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.True(t, matchesAny("/panel/users", []string{"/panel"}))
	assert.True(t, matchesAny("/panel", []string{"/panel"}))
	assert.False(t, matchesAny("/panelx", []string{"/panel"}))
}

func TestRequireIdentity(t *testing.T) {
	app := fiber.New()
	app.Get("/api/x", RequireIdentity(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })
	app.Get("/api/y", func(c *fiber.Ctx) error {
		c.Locals(localsIdentity, &Identity{UserID: uuid.New(), Role: models.RoleCustomer})
		return c.Next()
	}, RequireIdentity(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/x", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/y", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
