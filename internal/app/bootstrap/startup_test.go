package bootstrap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	projectsvc "github.com/dalemusser/taskhub/internal/app/services/projects"
	tasksvc "github.com/dalemusser/taskhub/internal/app/services/tasks"
	"github.com/dalemusser/taskhub/internal/app/system/metrics"
	"github.com/dalemusser/taskhub/internal/app/system/ratelimit"
	"github.com/dalemusser/taskhub/internal/testutil"
	"github.com/dalemusser/waffle/config"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context, *readpref.ReadPref) error { return p.err }

func testConfig() AppConfig {
	return AppConfig{
		MongoURI:           "mongodb://localhost:27017",
		JWTSecret:          testutil.TestSecret,
		CORSAllowedOrigins: []string{"*"},
		AuthRateLimit:      5,
		AuthRateWindow:     time.Minute,
		AuditLogAuth:       "off",
		AuditLogAdmin:      "off",
	}
}

type testApp struct {
	handler http.Handler
	id      *testutil.Identity
}

func newTestApp(t *testing.T, pingErr error) *testApp {
	t.Helper()
	mem := testutil.NewMemStore()
	id := testutil.NewIdentity(t, mem)
	limiter := ratelimit.New(50, time.Minute)
	t.Cleanup(limiter.Stop)

	c := components{
		Identity: id.Service,
		Issuer:   id.Issuer,
		Projects: projectsvc.New(mem.Projects, mem.Users, mem.Tasks, mem.Tx, nil),
		Tasks:    tasksvc.New(mem.Tasks, mem.Projects, mem.Users, nil),
		Metrics:  metrics.New(),
		Limiter:  limiter,
		DB:       fakePinger{err: pingErr},
	}
	return &testApp{handler: newRouter(c, testConfig(), zap.NewNop()), id: id}
}

func (a *testApp) do(r *http.Request, token string) *httptest.ResponseRecorder {
	if token != "" {
		testutil.Bearer(r, token)
	}
	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, r)
	return rec
}

// signUp registers and verifies an account through the API and returns its
// session token and id.
func (a *testApp) signUp(t *testing.T, name, email string) (token, id string) {
	t.Helper()
	rec := a.do(testutil.JSONRequest("POST", "/api/v1/auth/register", map[string]string{
		"name": name, "email": email, "password": "secret1",
	}), "")
	if rec.Code != http.StatusCreated {
		t.Fatalf("register %s: %d %s", name, rec.Code, rec.Body.String())
	}
	var reg struct {
		Token string `json:"token"`
	}
	testutil.DecodeData(t, rec, &reg)

	a.id.Service.Wait()
	code := a.id.Mail.LastCode(t, email)
	rec = a.do(testutil.JSONRequest("POST", "/api/v1/auth/verify-otp", map[string]string{"otp": code}), reg.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("verify %s: %d %s", name, rec.Code, rec.Body.String())
	}

	rec = a.do(testutil.JSONRequest("POST", "/api/v1/auth/login", map[string]string{
		"email": email, "password": "secret1",
	}), "")
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: %d %s", name, rec.Code, rec.Body.String())
	}
	var sess struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		Token string `json:"token"`
	}
	testutil.DecodeData(t, rec, &sess)
	return sess.Token, sess.User.ID
}

func TestRouter_ProjectAndTaskFlow(t *testing.T) {
	a := newTestApp(t, nil)
	ownerTok, _ := a.signUp(t, "Olive", "olive@example.com")
	annTok, annID := a.signUp(t, "Ann", "ann@example.com")

	rec := a.do(testutil.JSONRequest("POST", "/api/v1/projects", map[string]any{
		"name": "Launch", "members": []string{annID},
	}), ownerTok)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create project: %d %s", rec.Code, rec.Body.String())
	}
	var project struct {
		ID string `json:"id"`
	}
	testutil.DecodeData(t, rec, &project)

	rec = a.do(testutil.JSONRequest("POST", "/api/v1/projects/"+project.ID+"/tasks", map[string]any{
		"title": "Draft plan", "assignees": []string{annID}, "due_date": "2030-03-01T00:00:00Z",
	}), ownerTok)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create task: %d %s", rec.Code, rec.Body.String())
	}
	var task struct {
		ID string `json:"id"`
	}
	testutil.DecodeData(t, rec, &task)

	rec = a.do(httptest.NewRequest("GET", "/api/v1/tasks/my", nil), annTok)
	if rec.Code != http.StatusOK {
		t.Fatalf("my tasks: %d %s", rec.Code, rec.Body.String())
	}
	var mine []struct {
		ID string `json:"id"`
	}
	env := testutil.DecodeData(t, rec, &mine)
	if len(mine) != 1 || mine[0].ID != task.ID || len(env.Meta) == 0 {
		t.Errorf("my tasks = %+v meta=%s", mine, env.Meta)
	}

	rec = a.do(httptest.NewRequest("PUT", "/api/v1/tasks/"+task.ID+"/self-complete", nil), annTok)
	if rec.Code != http.StatusOK {
		t.Fatalf("self-complete: %d %s", rec.Code, rec.Body.String())
	}

	rec = a.do(httptest.NewRequest("GET", "/api/v1/users/me", nil), annTok)
	if rec.Code != http.StatusOK {
		t.Fatalf("me: %d %s", rec.Code, rec.Body.String())
	}

	rec = a.do(httptest.NewRequest("DELETE", "/api/v1/projects/"+project.ID, nil), ownerTok)
	if rec.Code != http.StatusOK {
		t.Fatalf("delete project: %d %s", rec.Code, rec.Body.String())
	}
	rec = a.do(httptest.NewRequest("GET", "/api/v1/tasks/my", nil), annTok)
	testutil.DecodeData(t, rec, &mine)
	if len(mine) != 0 {
		t.Errorf("tasks survived project delete: %+v", mine)
	}
}

func TestRouter_RequiresSession(t *testing.T) {
	a := newTestApp(t, nil)
	for _, target := range []string{"/api/v1/projects", "/api/v1/tasks/my", "/api/v1/users/me"} {
		rec := a.do(httptest.NewRequest("GET", target, nil), "")
		if rec.Code != http.StatusUnauthorized {
			t.Errorf("%s: status = %d, want 401", target, rec.Code)
		}
		if code := testutil.ErrorCode(t, rec); code != "INVALID_TOKEN" {
			t.Errorf("%s: code = %q", target, code)
		}
	}
}

func TestRouter_Fallbacks(t *testing.T) {
	a := newTestApp(t, nil)

	rec := a.do(httptest.NewRequest("GET", "/api/v1/nope", nil), "")
	if rec.Code != http.StatusNotFound || testutil.ErrorCode(t, rec) != "ROUTE_NOT_FOUND" {
		t.Errorf("unknown route: %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(RequestIDHeader) == "" {
		t.Error("missing request id header")
	}

	req := httptest.NewRequest("GET", "/health", nil)
	req.Header.Set(RequestIDHeader, "abc-123")
	rec = a.do(req, "")
	if rec.Code != http.StatusOK {
		t.Errorf("health: %d", rec.Code)
	}
	if got := rec.Header().Get(RequestIDHeader); got != "abc-123" {
		t.Errorf("request id = %q, want caller's", got)
	}

	rec = a.do(httptest.NewRequest("GET", "/metrics", nil), "")
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), "taskhub_http_requests_total") {
		t.Errorf("metrics: %d", rec.Code)
	}
}

func TestRouter_HealthDatabaseDown(t *testing.T) {
	a := newTestApp(t, errors.New("no servers"))
	rec := a.do(httptest.NewRequest("GET", "/health", nil), "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestValidateConfig(t *testing.T) {
	dev := &config.CoreConfig{Env: "dev"}
	prod := &config.CoreConfig{Env: "prod"}

	tests := []struct {
		name    string
		core    *config.CoreConfig
		mutate  func(c *AppConfig)
		wantErr bool
	}{
		{"defaults", dev, func(*AppConfig) {}, false},
		{"empty secret", dev, func(c *AppConfig) { c.JWTSecret = " " }, true},
		{"short secret in dev", dev, func(c *AppConfig) { c.JWTSecret = "short" }, false},
		{"short secret in prod", prod, func(c *AppConfig) { c.JWTSecret = "short" }, true},
		{"long secret in prod", prod, func(*AppConfig) {}, false},
		{"zero rate limit", dev, func(c *AppConfig) { c.AuthRateLimit = 0 }, true},
		{"bad audit mode", dev, func(c *AppConfig) { c.AuditLogAuth = "loud" }, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := testConfig()
			tc.mutate(&cfg)
			err := ValidateConfig(tc.core, cfg, zap.NewNop())
			if (err != nil) != tc.wantErr {
				t.Errorf("err = %v, wantErr %v", err, tc.wantErr)
			}
		})
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" https://a.example ,, https://b.example ")
	if len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("splitList = %q", got)
	}
	if splitList("") != nil {
		t.Error("empty list should be nil")
	}
}

func TestEnsureSchema(t *testing.T) {
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()

	deps := DBDeps{TaskHubMongoDatabase: db}
	for i := 0; i < 2; i++ {
		if err := EnsureSchema(ctx, nil, testConfig(), deps, zap.NewNop()); err != nil {
			t.Fatalf("EnsureSchema run %d: %v", i+1, err)
		}
	}
}
