package handler

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gaia-urban/gaia/backend/internal/config"
	"github.com/gaia-urban/gaia/backend/internal/domain"
	"github.com/gaia-urban/gaia/backend/internal/metrics"
	"github.com/gaia-urban/gaia/backend/internal/planner"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

type testResponse struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestHandler(t *testing.T) *Handler {
	t.Helper()

	cfg := &config.Config{}
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.Expiration = 1

	h, err := NewHandler(cfg, nil, nil, nil, planner.New(slog.New(slog.NewTextHandler(io.Discard, nil))), metrics.New())
	require.NoError(t, err)
	h.RegisterRoutes()
	return h
}

func tokenCookie(t *testing.T, h *Handler, role domain.Role) *http.Cookie {
	t.Helper()

	ss, _, err := h.signToken(&domain.User{ID: 7, Role: role}, time.Now())
	require.NoError(t, err)
	return &http.Cookie{Name: tokenCookieName, Value: ss}
}

func serve(t *testing.T, handler http.Handler, req *http.Request) (*httptest.ResponseRecorder, testResponse) {
	t.Helper()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var resp testResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec, resp
}

func box(minX, minY, maxX, maxY float64) []domain.Coord {
	return []domain.Coord{{minX, minY}, {maxX, minY}, {maxX, maxY}, {minX, maxY}}
}

func evaluationBody(t *testing.T, layout []domain.LayoutEntry) *bytes.Reader {
	t.Helper()

	body := map[string]any{
		"scenario": domain.Scenario{
			Name:       "handler",
			AnchorSite: "a",
			Sites: []domain.Site{
				{ID: "a", Footprint: box(0, 0, 40, 30)},
				{ID: "b", Footprint: box(60, 0, 90, 50)},
			},
			Buildings: []domain.BuildingSpec{
				{ID: "home", Type: domain.BuildingTypeApartment, TargetGFA: 2000},
			},
			Services: []domain.Service{{Shop: "bakery", Location: domain.Coord{50, 20}}},
			Sun:      domain.Sun{Azimuth: 180, Altitude: 30},
		},
		"layout": layout,
	}
	data, err := json.Marshal(body)
	require.NoError(t, err)
	return bytes.NewReader(data)
}

func TestAuth_NoCookie(t *testing.T) {
	h := newTestHandler(t)

	_, resp := serve(t, h.Mux, httptest.NewRequest(http.MethodGet, "/runs", nil))
	assert.False(t, resp.Success)
	assert.Equal(t, "用户未登录", resp.Message)
}

func TestAuth_InvalidToken(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/runs", nil)
	req.AddCookie(&http.Cookie{Name: tokenCookieName, Value: "not-a-token"})
	_, resp := serve(t, h.Mux, req)
	assert.Equal(t, "无效的令牌", resp.Message)

	// 使用其他密钥签发的令牌
	other := newTestHandler(t)
	other.config.JWT.Secret = "other-secret"
	req = httptest.NewRequest(http.MethodGet, "/runs", nil)
	req.AddCookie(tokenCookie(t, other, domain.RoleAdmin))
	_, resp = serve(t, h.Mux, req)
	assert.Equal(t, "无效的令牌", resp.Message)
}

func TestAuth_SetsClaims(t *testing.T) {
	h := newTestHandler(t)

	var role, sub string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		role = r.Context().Value(RoleCtxKey).(string)
		sub = r.Context().Value(SubCtxKey).(string)
		h.successResponse(w, r, "ok", nil)
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(tokenCookie(t, h, domain.RolePlanner))
	_, resp := serve(t, h.auth(next), req)

	assert.True(t, resp.Success)
	assert.Equal(t, string(domain.RolePlanner), role)
	assert.Equal(t, "7", sub)
}

func TestRequiredRole(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodGet, "/users", nil)
	req.AddCookie(tokenCookie(t, h, domain.RolePlanner))
	_, resp := serve(t, h.Mux, req)

	assert.False(t, resp.Success)
	assert.Equal(t, "权限不足", resp.Message)
}

func TestRecoverer(t *testing.T) {
	h := newTestHandler(t)

	panicking := http.HandlerFunc(func(http.ResponseWriter, *http.Request) { panic("boom") })
	rec, resp := serve(t, h.recoverer(panicking), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.False(t, resp.Success)
}

func TestLogout(t *testing.T) {
	h := newTestHandler(t)

	rec, resp := serve(t, h.Mux, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))
	assert.True(t, resp.Success)

	cookies := rec.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, tokenCookieName, cookies[0].Name)
	assert.Empty(t, cookies[0].Value)
	assert.True(t, cookies[0].HttpOnly)
	assert.True(t, cookies[0].Expires.Before(time.Now()))
}

func TestParseToken(t *testing.T) {
	h := newTestHandler(t)

	ss, _, err := h.signToken(&domain.User{ID: 3, Role: domain.RoleAdmin}, time.Now())
	require.NoError(t, err)
	claims, err := h.parseToken(ss)
	require.NoError(t, err)
	assert.Equal(t, "3", claims.Subject)
	assert.Equal(t, string(domain.RoleAdmin), claims.Role)

	// 两小时前签发、有效期一小时的令牌已经过期
	ss, _, err = h.signToken(&domain.User{ID: 3, Role: domain.RoleAdmin}, time.Now().Add(-2*time.Hour))
	require.NoError(t, err)
	_, err = h.parseToken(ss)
	assert.Error(t, err)
}

func TestCheckPassword(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct horse"), bcrypt.MinCost)
	require.NoError(t, err)
	user := &domain.User{PasswordHash: string(hash)}

	ok, err := checkPassword(user, "correct horse")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = checkPassword(user, "battery staple")
	require.NoError(t, err)
	assert.False(t, ok)

	// 损坏的哈希不是密码错误
	_, err = checkPassword(&domain.User{PasswordHash: "broken"}, "correct horse")
	assert.Error(t, err)
}

func TestCanOperateRun(t *testing.T) {
	run := &domain.Run{CreatedBy: 7}

	assert.True(t, canOperateRun(&domain.User{ID: 7, Role: domain.RolePlanner}, run))
	assert.False(t, canOperateRun(&domain.User{ID: 8, Role: domain.RolePlanner}, run))
	assert.True(t, canOperateRun(&domain.User{ID: 8, Role: domain.RoleAdmin}, run))
}

func TestLogger_ObservesRoutePattern(t *testing.T) {
	h := newTestHandler(t)

	serve(t, h.Mux, httptest.NewRequest(http.MethodPost, "/auth/logout", nil))

	rec := httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `gaia_http_request_duration_seconds_count{method="POST",route="/auth/logout",status="200"} 1`)
}

func TestEvaluate(t *testing.T) {
	h := newTestHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/evaluate", evaluationBody(t, []domain.LayoutEntry{
		{BuildingID: "home", Type: domain.BuildingTypeApartment, SiteID: "b", Height: 9},
	}))
	req.AddCookie(tokenCookie(t, h, domain.RolePlanner))
	_, resp := serve(t, h.Mux, req)
	require.True(t, resp.Success, resp.Message)

	var data struct {
		Plan struct {
			Urban struct {
				SiteToBuilding map[string]string `json:"siteToBuilding"`
			} `json:"urban"`
		} `json:"plan"`
		Report string `json:"report"`
	}
	require.NoError(t, json.Unmarshal(resp.Data, &data))
	assert.Contains(t, data.Report, "handler - Evaluation Report")
}

func TestEvaluate_InvalidRequests(t *testing.T) {
	h := newTestHandler(t)
	cookie := tokenCookie(t, h, domain.RolePlanner)

	tests := []struct {
		name string
		body io.Reader
	}{
		{"empty layout", evaluationBody(t, nil)},
		{"unknown site", evaluationBody(t, []domain.LayoutEntry{
			{BuildingID: "home", Type: domain.BuildingTypeApartment, SiteID: "z", Height: 9},
		})},
		{"unknown field", bytes.NewReader([]byte(`{"scenario":{},"layout":[],"extra":1}`))},
		{"not json", bytes.NewReader([]byte(`{`))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/evaluate", tt.body)
			req.AddCookie(cookie)
			_, resp := serve(t, h.Mux, req)
			assert.False(t, resp.Success)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestReadScenario(t *testing.T) {
	h := newTestHandler(t)

	// 建筑数量多于场地数量
	s := domain.Scenario{
		Name:       "crowded",
		AnchorSite: "a",
		Sites:      []domain.Site{{ID: "a", Footprint: box(0, 0, 10, 10)}},
		Buildings: []domain.BuildingSpec{
			{ID: "one", Type: domain.BuildingTypeOffice, TargetGFA: 100},
			{ID: "two", Type: domain.BuildingTypeSchool, TargetGFA: 100},
		},
		Sun: domain.Sun{Azimuth: 90, Altitude: 45},
	}
	data, err := json.Marshal(s)
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	_, ok := h.readScenario(rec, httptest.NewRequest(http.MethodPost, "/runs", bytes.NewReader(data)))
	require.False(t, ok)

	var resp testResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Message, "不能多于场地数量")

	s.Buildings = s.Buildings[:1]
	data, err = json.Marshal(s)
	require.NoError(t, err)
	got, ok := h.readScenario(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/runs", bytes.NewReader(data)))
	require.True(t, ok)
	assert.Equal(t, "crowded", got.Name)
}

func TestMetricsEndpoint(t *testing.T) {
	h := newTestHandler(t)

	rec := httptest.NewRecorder()
	h.Mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "gaia_runs_in_progress")
}
