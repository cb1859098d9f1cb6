package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hitoshi/panchsetu/internal/auth"
	"github.com/hitoshi/panchsetu/internal/mailer"
	"github.com/hitoshi/panchsetu/internal/metrics"
	"github.com/hitoshi/panchsetu/internal/middleware"
	"github.com/hitoshi/panchsetu/internal/model"
	"github.com/hitoshi/panchsetu/internal/repository"
	"github.com/hitoshi/panchsetu/internal/user"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/crypto/bcrypt"
)

// --- インメモリストア ---

type memoryUserRepo struct {
	role  model.Role
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemoryUserRepo(role model.Role) *memoryUserRepo {
	return &memoryUserRepo{role: role, users: make(map[string]*model.User)}
}

func (m *memoryUserRepo) Role() model.Role { return m.role }

func (m *memoryUserRepo) Create(ctx context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return model.ErrDuplicateEmail
		}
	}
	cp := *u
	m.users[u.ID] = &cp
	return nil
}

func (m *memoryUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memoryUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[id]; ok {
		cp := *u
		return &cp, nil
	}
	return nil, nil
}

func (m *memoryUserRepo) EnsureIndexes(ctx context.Context) error { return nil }

func (m *memoryUserRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.users)
}

type nopSender struct{}

func (nopSender) Send(ctx context.Context, msg mailer.Message) error { return nil }
func (nopSender) Provider() string                                   { return "test" }

type mockHealthChecker struct {
	err error
}

func (m *mockHealthChecker) PingContext(ctx context.Context) error { return m.err }

// --- テスト用サーバー ---

type testServer struct {
	router   http.Handler
	patients *memoryUserRepo
	health   *mockHealthChecker
	registry *prometheus.Registry
}

// newTestServer は実際の認証サービス・失効リスト（miniredis）を組み込んだルーターを構築する。
func newTestServer(t *testing.T, limiter *middleware.RateLimiter) *testServer {
	t.Helper()

	mr := miniredis.RunT(t)
	rc := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rc.Close() })

	tokens, err := auth.NewTokenIssuer(auth.TokenConfig{Secret: "router-test-secret"})
	if err != nil {
		t.Fatalf("NewTokenIssuer() error = %v", err)
	}

	patients := newMemoryUserRepo(model.RolePatient)
	stores := repository.NewStores(patients, newMemoryUserRepo(model.RolePractitioner))

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	authService := auth.NewService(stores, auth.NewBcryptHasher(bcrypt.MinCost), tokens, auth.ServiceConfig{
		Denylist: auth.NewRedisDenylist(rc),
		Mailer:   nopSender{},
		Metrics:  collector,
	})

	health := &mockHealthChecker{}
	router := NewRouter(&RouterDeps{
		Authenticator:      authService,
		CORSAllowedOrigins: []string{"http://localhost:5173"},
		RateLimiter:        limiter,
		Logger:             slog.New(slog.NewTextHandler(io.Discard, nil)),
		Metrics:            collector,
		HealthChecker:      health,
		MetricsHandler:     metrics.Handler(registry),
		AuthService:        authService,
		Cookies:            CookieConfig{MaxAge: 86400},
		UserService:        user.NewService(stores),
	})

	return &testServer{router: router, patients: patients, health: health, registry: registry}
}

func (s *testServer) do(req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func withCookie(req *http.Request, c *http.Cookie) *http.Request {
	if c != nil {
		req.AddCookie(&http.Cookie{Name: c.Name, Value: c.Value})
	}
	return req
}

// --- シナリオ ---

func TestRouter_RegisterThenGetUserData(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(postJSON("/api/auth/patient-register", `{"name":"Asha","email":"asha@x.com","password":"secret1"}`))
	body := decodeBody(t, w)
	if body["success"] != true {
		t.Fatalf("register body = %v", body)
	}
	cookie := sessionCookieFrom(w)
	if cookie == nil {
		t.Fatal("expected session cookie")
	}
	if s.patients.count() != 1 {
		t.Errorf("patients = %d, want exactly 1", s.patients.count())
	}

	w = s.do(withCookie(httptest.NewRequest(http.MethodGet, "/api/common/getuserdata", nil), cookie))
	body = decodeBody(t, w)
	if body["success"] != true {
		t.Fatalf("getuserdata body = %v", body)
	}
	u := body["user"].(map[string]any)
	if u["email"] != "asha@x.com" || u["role"] != "patient" {
		t.Errorf("user = %v", u)
	}
}

func TestRouter_DuplicateRegistration_CreatesNoRecord(t *testing.T) {
	s := newTestServer(t, nil)

	s.do(postJSON("/api/auth/patient-register", `{"name":"Asha","email":"asha@x.com","password":"secret1"}`))
	w := s.do(postJSON("/api/auth/patient-register", `{"name":"Other","email":"asha@x.com","password":"other"}`))

	assertFailure(t, w, "User already exists...")
	if s.patients.count() != 1 {
		t.Errorf("patients = %d, want 1", s.patients.count())
	}
}

func TestRouter_LoginWrongPassword_NoCookie(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(postJSON("/api/auth/patient-register", `{"name":"Asha","email":"asha@x.com","password":"secret1"}`))

	w := s.do(postJSON("/api/auth/patient-login", `{"email":"asha@x.com","password":"wrong"}`))

	assertFailure(t, w, "Invalid Password!!!")
}

func TestRouter_LoginThenBearerHeader(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(postJSON("/api/auth/patient-register", `{"name":"Asha","email":"asha@x.com","password":"secret1"}`))

	w := s.do(postJSON("/api/auth/patient-login", `{"email":"asha@x.com","password":"secret1"}`))
	cookie := sessionCookieFrom(w)
	if cookie == nil {
		t.Fatal("expected session cookie")
	}

	req := httptest.NewRequest(http.MethodGet, "/api/common/is-auth", nil)
	req.Header.Set("Authorization", "Bearer "+cookie.Value)
	body := decodeBody(t, s.do(req))
	if body["success"] != true {
		t.Errorf("is-auth with bearer = %v", body)
	}
}

func TestRouter_GatedRoutes_WithoutToken_NotAuthorized(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"/api/common/is-auth", "/api/common/getuserdata", "/api/auth/is-auth", "/api/patient/data"} {
		t.Run(path, func(t *testing.T) {
			w := s.do(httptest.NewRequest(http.MethodGet, path, nil))
			assertFailure(t, w, "Not Authorized. Login Again")
		})
	}
}

func TestRouter_Logout_RevokesToken(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(postJSON("/api/auth/patient-register", `{"name":"Asha","email":"asha@x.com","password":"secret1"}`))
	cookie := sessionCookieFrom(w)

	w = s.do(withCookie(httptest.NewRequest(http.MethodGet, "/api/common/logout", nil), cookie))
	if body := decodeBody(t, w); body["success"] != true || body["message"] != "Logged Out" {
		t.Fatalf("logout body = %v", body)
	}

	// ログアウト前のトークンを再提示しても拒否される
	w = s.do(withCookie(httptest.NewRequest(http.MethodGet, "/api/common/getuserdata", nil), cookie))
	assertFailure(t, w, "Not Authorized. Login Again")
}

func TestRouter_Logout_Unauthenticated_Succeeds(t *testing.T) {
	s := newTestServer(t, nil)

	for _, req := range []*http.Request{
		httptest.NewRequest(http.MethodGet, "/api/common/logout", nil),
		httptest.NewRequest(http.MethodPost, "/api/auth/patient-logout", nil),
	} {
		w := s.do(req)
		if body := decodeBody(t, w); body["success"] != true {
			t.Errorf("%s %s body = %v", req.Method, req.URL.Path, body)
		}
		if sessionCookieFrom(w) == nil {
			t.Errorf("%s %s: expected clearing cookie", req.Method, req.URL.Path)
		}
	}
}

func TestRouter_PatientData_Defaults(t *testing.T) {
	s := newTestServer(t, nil)
	w := s.do(postJSON("/api/auth/patient-register", `{"name":"Asha","email":"asha@x.com","password":"secret1"}`))

	w = s.do(withCookie(httptest.NewRequest(http.MethodGet, "/api/patient/data", nil), sessionCookieFrom(w)))
	body := decodeBody(t, w)
	data, ok := body["userData"].(map[string]any)
	if !ok {
		t.Fatalf("body = %v", body)
	}
	if data["bloodGroup"] != "Not Set" || data["medicalHistory"] != "no history found" {
		t.Errorf("userData = %v", data)
	}
}

func TestRouter_HospitalLogin_NotAvailable(t *testing.T) {
	s := newTestServer(t, nil)

	for _, path := range []string{"/api/auth/hospital-login", "/api/auth/admin-login"} {
		w := s.do(postJSON(path, `{"email":"h@x.com","password":"pw"}`))
		assertFailure(t, w, "")
	}
}

func TestRouter_Root_ReturnsWelcome(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(httptest.NewRequest(http.MethodGet, "/", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if got, _ := io.ReadAll(w.Body); string(got) != "Welcome to AyurSutra" {
		t.Errorf("body = %q", got)
	}
}

func TestRouter_Health(t *testing.T) {
	s := newTestServer(t, nil)

	if w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil)); w.Code != http.StatusOK {
		t.Errorf("healthy status = %d, want 200", w.Code)
	}

	s.health.err = errors.New("server selection timeout")
	if w := s.do(httptest.NewRequest(http.MethodGet, "/health", nil)); w.Code != http.StatusServiceUnavailable {
		t.Errorf("unhealthy status = %d, want 503", w.Code)
	}
}

func TestRouter_Metrics_ExposesAuthCounters(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(postJSON("/api/auth/patient-login", `{"email":"nobody@x.com","password":"pw"}`))
	s.do(httptest.NewRequest(http.MethodGet, "/api/common/is-auth", nil))

	w := s.do(httptest.NewRequest(http.MethodGet, "/metrics", nil))
	out := w.Body.String()
	for _, want := range []string{
		`panchsetu_logins_total{result="not_found",role="patient"} 1`,
		`panchsetu_auth_gate_rejections_total{reason="missing"} 1`,
		`panchsetu_http_responses_total{status_code="200"}`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("metrics output missing %q", want)
		}
	}
}

func TestRouter_CrossOriginPost_Refused(t *testing.T) {
	s := newTestServer(t, nil)

	req := postJSON("/api/auth/patient-register", `{"name":"Asha","email":"asha@x.com","password":"secret1"}`)
	req.Header.Set("Origin", "https://evil.example")
	w := s.do(req)

	if w.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", w.Code)
	}
	if s.patients.count() != 0 {
		t.Error("no record should be created for a refused request")
	}
}

func TestRouter_Preflight(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/patient-login", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", "POST")
	w := s.do(req)

	if w.Code != http.StatusNoContent {
		t.Errorf("status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Errorf("Access-Control-Allow-Credentials = %q", got)
	}
}

func TestRouter_AuthRateLimit(t *testing.T) {
	limiter := middleware.NewRateLimiter(middleware.RateLimiterConfig{
		AuthRate:        0.001,
		AuthBurst:       2,
		CleanupInterval: time.Hour,
	})
	t.Cleanup(limiter.Stop)
	s := newTestServer(t, limiter)

	for i := 0; i < 2; i++ {
		w := s.do(postJSON("/api/auth/patient-login", `{"email":"a@x.com","password":"pw"}`))
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d", i, w.Code)
		}
	}
	w := s.do(postJSON("/api/auth/patient-login", `{"email":"a@x.com","password":"pw"}`))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}

	// 認証済みルートとログアウトはレート制限の対象外
	if w := s.do(httptest.NewRequest(http.MethodGet, "/api/common/logout", nil)); w.Code != http.StatusOK {
		t.Errorf("logout status = %d, want 200", w.Code)
	}
}
