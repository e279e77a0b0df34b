package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"liveconf/internal/config"
	"liveconf/internal/fields"
	"liveconf/internal/model"
	"liveconf/internal/schema"
	"liveconf/internal/storage"
	"liveconf/internal/storage/memory"
	"liveconf/internal/testutil"
	"liveconf/internal/util"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const testAdminPassword = "test_password_123"

type testEnv struct {
	store  storage.Store
	cs     *ConfigService
	auth   *AuthService
	srv    *Server
	engine *gin.Engine
}

type envOption func(*envOptions)

type envOptions struct {
	store  storage.Store
	policy Policy
}

func withStore(s storage.Store) envOption { return func(o *envOptions) { o.store = s } }

func withPolicy(p Policy) envOption { return func(o *envOptions) { o.policy = p } }

func testEnvConfig() *config.EnvConfig {
	return &config.EnvConfig{
		Password:     testAdminPassword,
		SessionHours: 1,
		Users: []config.UserSpec{
			{Username: "alice", Password: "alice_pw", Role: "staff"},
			{Username: "victor", Password: "victor_pw", Role: "viewer"},
		},
	}
}

func newTestAuth(t testing.TB) *AuthService {
	t.Helper()
	auth, err := newAuthService(testEnvConfig(), util.NewLoginRateLimiter(), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("newAuthService: %v", err)
	}
	t.Cleanup(auth.Close)
	return auth
}

func newTestConfigService(t testing.TB, store storage.Store) *ConfigService {
	t.Helper()
	cs, err := NewConfigService(schema.Sample(), fields.NewRegistry(), store)
	if err != nil {
		t.Fatalf("NewConfigService: %v", err)
	}
	return cs
}

func newTestEnv(t testing.TB, opts ...envOption) *testEnv {
	t.Helper()

	o := envOptions{policy: ChangePermissionPolicy{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.store == nil {
		o.store = memory.New()
	}

	cs := newTestConfigService(t, o.store)
	auth := newTestAuth(t)
	srv, err := NewServer(cs, auth, o.policy)
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})

	r := gin.New()
	srv.SetupRoutes(r)
	return &testEnv{store: o.store, cs: cs, auth: auth, srv: srv, engine: r}
}

// login 直接创建会话，返回明文令牌与 CSRF 令牌
func (e *testEnv) login(t testing.TB, username, password string) (token, csrf string) {
	t.Helper()
	user, ok := e.auth.Authenticate(username, password)
	if !ok {
		t.Fatalf("authenticate %s failed", username)
	}
	token, csrf, err := e.auth.CreateSession(user)
	if err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	return token, csrf
}

func (e *testEnv) serve(t testing.TB, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	return testutil.ServeHTTP(t, e.engine, req)
}

func withSession(req *http.Request, token string) *http.Request {
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: token})
	return req
}

// submitForm 以会话 cookie 提交配置表单
func (e *testEnv) submitForm(t testing.TB, token, csrf string, data url.Values) *httptest.ResponseRecorder {
	t.Helper()
	if csrf != "" {
		data.Set(CSRFField, csrf)
	}
	req := withSession(testutil.NewFormRequest(http.MethodPost, ChangeListPath, data), token)
	return e.serve(t, req)
}

// currentFormData 当前后端值对应的提交数据（含版本指纹）
func (e *testEnv) currentFormData(t testing.TB) url.Values {
	t.Helper()
	form, err := e.cs.NewForm(context.Background())
	if err != nil {
		t.Fatalf("NewForm: %v", err)
	}
	return form.InitialData()
}

func hashForTest(token string) string {
	return model.HashToken(token)
}
