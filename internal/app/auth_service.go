package app

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"liveconf/internal/config"
	"liveconf/internal/errors"
	"liveconf/internal/model"
	"liveconf/internal/util"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

const (
	// SessionCookie 管理页面会话 cookie
	SessionCookie = "liveconf_session"
	// CSRFField 表单中的 CSRF 字段
	CSRFField = "csrfmiddlewaretoken"
	// CSRFHeader 使用 cookie 会话调用 API 时的 CSRF 请求头
	CSRFHeader = "X-CSRFToken"

	// LoginPath 登录页
	LoginPath = "/admin/login"

	ctxUserKey    = "liveconf_user"
	ctxSessionKey = "liveconf_session"
	ctxBearerKey  = "liveconf_bearer"
)

// session 一次登录会话（以令牌哈希为键）
type session struct {
	user   *model.User
	expiry time.Time
	csrf   string
}

// AuthService 认证和授权服务
// 职责：
// - 管理员账号（启动时bcrypt哈希）
// - 会话（cookie 或 Bearer 令牌，仅保存SHA256哈希）
// - 登录/登出处理与速率限制
// - CSRF 令牌校验
type AuthService struct {
	users     map[string]*model.User
	dummyHash []byte // 用户不存在时也做一次bcrypt比较，避免时序差异

	sessions   map[string]*session // TokenHash → 会话
	sessionsMu sync.RWMutex
	sessionTTL time.Duration
	now        func() time.Time

	loginRateLimiter *util.LoginRateLimiter

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// NewAuthService 创建认证服务实例并启动过期会话清理协程
func NewAuthService(cfg *config.EnvConfig, limiter *util.LoginRateLimiter) (*AuthService, error) {
	return newAuthService(cfg, limiter, bcrypt.DefaultCost)
}

func newAuthService(cfg *config.EnvConfig, limiter *util.LoginRateLimiter, cost int) (*AuthService, error) {
	if cfg.Password == "" {
		return nil, errors.MissingConfigError("LIVECONF_PASS")
	}
	hours := cfg.SessionHours
	if hours <= 0 {
		hours = config.DefaultSessionHours
	}

	s := &AuthService{
		users:            make(map[string]*model.User, len(cfg.Users)+1),
		sessions:         make(map[string]*session),
		sessionTTL:       time.Duration(hours) * time.Hour,
		now:              time.Now,
		loginRateLimiter: limiter,
		done:             make(chan struct{}),
	}

	accounts := append([]config.UserSpec{{Username: "admin", Password: cfg.Password, Role: model.RoleSuperuser}}, cfg.Users...)
	for _, acct := range accounts {
		if _, dup := s.users[acct.Username]; dup {
			return nil, errors.InvalidConfigError("LIVECONF_USERS", "duplicate user "+acct.Username)
		}
		superuser, perms, ok := model.PermissionsForRole(acct.Role)
		if !ok {
			return nil, errors.InvalidConfigError("LIVECONF_USERS", "unknown role "+acct.Role)
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(acct.Password), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", acct.Username, err)
		}
		s.users[acct.Username] = &model.User{
			Username:     acct.Username,
			IsSuperuser:  superuser,
			Permissions:  perms,
			PasswordHash: hash,
		}
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("liveconf-dummy"), cost)
	if err != nil {
		return nil, fmt.Errorf("hash dummy password: %w", err)
	}
	s.dummyHash = dummy

	s.wg.Add(1)
	go s.cleanupLoop(config.TokenCleanupInterval)

	return s, nil
}

// Close 优雅关闭 AuthService（幂等，可安全多次调用）
func (s *AuthService) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
		if s.loginRateLimiter != nil {
			s.loginRateLimiter.Stop()
		}
	})
}

func (s *AuthService) cleanupLoop(interval time.Duration) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			if n := s.CleanExpiredSessions(); n > 0 {
				log.Printf("[INFO] 清理过期会话 %d 个", n)
			}
		}
	}
}

// ============================================================================
// 账号与会话
// ============================================================================

// Authenticate 校验用户名和密码
func (s *AuthService) Authenticate(username, password string) (*model.User, bool) {
	user, ok := s.users[username]
	if !ok {
		_ = bcrypt.CompareHashAndPassword(s.dummyHash, []byte(password))
		return nil, false
	}
	if err := bcrypt.CompareHashAndPassword(user.PasswordHash, []byte(password)); err != nil {
		return nil, false
	}
	return user, true
}

// generateToken 生成安全Token（64字符十六进制）
func generateToken() (string, error) {
	b := make([]byte, config.TokenRandomBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("crypto/rand failed: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// CreateSession 为用户创建会话，返回明文令牌（仅此一次）和 CSRF 令牌
func (s *AuthService) CreateSession(user *model.User) (token, csrf string, err error) {
	token, err = generateToken()
	if err != nil {
		return "", "", err
	}
	csrf, err = generateToken()
	if err != nil {
		return "", "", err
	}
	sess := &session{user: user, expiry: s.now().Add(s.sessionTTL), csrf: csrf}

	s.sessionsMu.Lock()
	s.sessions[model.HashToken(token)] = sess
	s.sessionsMu.Unlock()
	return token, csrf, nil
}

// lookupSession 按明文令牌查找有效会话；过期会话同步删除
func (s *AuthService) lookupSession(token string) (*session, bool) {
	tokenHash := model.HashToken(token)

	s.sessionsMu.RLock()
	sess, exists := s.sessions[tokenHash]
	s.sessionsMu.RUnlock()

	if !exists {
		return nil, false
	}
	if s.now().After(sess.expiry) {
		s.sessionsMu.Lock()
		delete(s.sessions, tokenHash)
		s.sessionsMu.Unlock()
		return nil, false
	}
	return sess, true
}

// DeleteSession 删除会话
func (s *AuthService) DeleteSession(token string) {
	s.sessionsMu.Lock()
	delete(s.sessions, model.HashToken(token))
	s.sessionsMu.Unlock()
}

// CleanExpiredSessions 清理过期会话，返回清理数量
func (s *AuthService) CleanExpiredSessions() int {
	now := s.now()

	// 快照模式避免长时间持锁
	s.sessionsMu.RLock()
	toDelete := make([]string, 0, len(s.sessions)/10)
	for tokenHash, sess := range s.sessions {
		if now.After(sess.expiry) {
			toDelete = append(toDelete, tokenHash)
		}
	}
	s.sessionsMu.RUnlock()

	if len(toDelete) == 0 {
		return 0
	}
	removed := 0
	s.sessionsMu.Lock()
	for _, tokenHash := range toDelete {
		if sess, exists := s.sessions[tokenHash]; exists && now.After(sess.expiry) {
			delete(s.sessions, tokenHash)
			removed++
		}
	}
	s.sessionsMu.Unlock()
	return removed
}

// tokenFromRequest 优先 Authorization: Bearer，其次会话 cookie
func tokenFromRequest(c *gin.Context) (token string, bearer bool) {
	if after, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer "); ok && after != "" {
		return after, true
	}
	if v, err := c.Cookie(SessionCookie); err == nil && v != "" {
		return v, false
	}
	return "", false
}

// ============================================================================
// 中间件
// ============================================================================

// LoadUser 解析会话并把用户写入 context（不拦截匿名请求）
func (s *AuthService) LoadUser() gin.HandlerFunc {
	return func(c *gin.Context) {
		if token, bearer := tokenFromRequest(c); token != "" {
			if sess, ok := s.lookupSession(token); ok {
				c.Set(ctxUserKey, sess.user)
				c.Set(ctxSessionKey, sess)
				c.Set(ctxBearerKey, bearer)
			}
		}
		c.Next()
	}
}

// RequireLoginPage 页面路由：匿名用户重定向到登录页
func (s *AuthService) RequireLoginPage() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			c.Redirect(http.StatusFound, LoginPath+"?next="+url.QueryEscape(c.Request.URL.RequestURI()))
			c.Abort()
			return
		}
		c.Next()
	}
}

// RequireLoginAPI API 路由：匿名请求返回 401
func (s *AuthService) RequireLoginAPI() gin.HandlerFunc {
	return func(c *gin.Context) {
		if CurrentUser(c) == nil {
			RespondError(c, http.StatusUnauthorized, errors.InvalidTokenError())
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser 当前请求的登录用户（匿名时为 nil）
func CurrentUser(c *gin.Context) *model.User {
	if v, ok := c.Get(ctxUserKey); ok {
		if u, ok := v.(*model.User); ok {
			return u
		}
	}
	return nil
}

func currentSession(c *gin.Context) *session {
	if v, ok := c.Get(ctxSessionKey); ok {
		if sess, ok := v.(*session); ok {
			return sess
		}
	}
	return nil
}

// CSRFToken 当前会话的 CSRF 令牌
func CSRFToken(c *gin.Context) string {
	if sess := currentSession(c); sess != nil {
		return sess.csrf
	}
	return ""
}

// VerifyCSRF 校验写请求的 CSRF 令牌
// Bearer 令牌不会被浏览器自动携带，无需校验
func VerifyCSRF(c *gin.Context) bool {
	if c.GetBool(ctxBearerKey) {
		return true
	}
	sess := currentSession(c)
	if sess == nil {
		return false
	}
	submitted := c.GetHeader(CSRFHeader)
	if submitted == "" {
		submitted = c.PostForm(CSRFField)
	}
	return submitted != "" && subtle.ConstantTimeCompare([]byte(submitted), []byte(sess.csrf)) == 1
}

// ============================================================================
// 登录/登出处理
// ============================================================================

type loginRequest struct {
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
	Next     string `json:"next" form:"next"`
}

// safeNext 只允许站内路径，避免开放重定向
func safeNext(next string) string {
	if next == "" || !strings.HasPrefix(next, "/") || strings.HasPrefix(next, "//") || strings.Contains(next, "\\") {
		return ChangeListPath
	}
	return next
}

func wantsJSON(c *gin.Context) bool {
	return strings.HasPrefix(c.ContentType(), gin.MIMEJSON)
}

// HandleLoginPage 渲染登录页
func (s *AuthService) HandleLoginPage(c *gin.Context) {
	if CurrentUser(c) != nil {
		c.Redirect(http.StatusFound, safeNext(c.Query("next")))
		return
	}
	c.HTML(http.StatusOK, "login.html", gin.H{"Next": safeNext(c.Query("next"))})
}

// HandleLogin 处理登录请求（表单或JSON）
// 集成登录速率限制，防暴力破解
func (s *AuthService) HandleLogin(c *gin.Context) {
	asJSON := wantsJSON(c)
	clientIP := c.ClientIP()

	var req loginRequest
	var bindErr error
	if asJSON {
		bindErr = bindJSON(c, &req)
	} else {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, config.DefaultMaxFormBytes)
		bindErr = c.ShouldBind(&req)
	}
	next := safeNext(req.Next)

	fail := func(status int, msg string) {
		if asJSON {
			RespondErrorMsg(c, status, msg)
			return
		}
		c.HTML(status, "login.html", gin.H{"Error": msg, "Username": req.Username, "Next": next})
	}

	if allowed, lockout := s.loginRateLimiter.Allowed(clientIP); !allowed {
		fail(http.StatusTooManyRequests, fmt.Sprintf("Too many failed login attempts. Try again in %d seconds.", lockout))
		return
	}
	if bindErr != nil || req.Username == "" || req.Password == "" {
		fail(http.StatusBadRequest, "Please enter a username and password.")
		return
	}

	user, ok := s.Authenticate(req.Username, req.Password)
	if !ok {
		attempts := s.loginRateLimiter.RecordFailure(clientIP)
		util.SafePrintf("[WARN] 登录失败: user=%s IP=%s, 尝试次数=%d/%d", req.Username, clientIP, attempts, config.LoginMaxAttempts)
		fail(http.StatusUnauthorized, "Please enter the correct username and password.")
		return
	}
	s.loginRateLimiter.RecordSuccess(clientIP)

	token, csrf, err := s.CreateSession(user)
	if err != nil {
		log.Printf("[ERROR] token generation failed: %v", err)
		fail(http.StatusInternalServerError, "internal error")
		return
	}
	util.SafePrintf("[INFO] 登录成功: user=%s IP=%s", user.Username, clientIP)

	if asJSON {
		RespondJSON(c, http.StatusOK, gin.H{
			"token":      token,
			"csrf_token": csrf,
			"expiresIn":  int(s.sessionTTL.Seconds()),
			"user":       user,
		})
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, token, int(s.sessionTTL.Seconds()), "/", "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusFound, next)
}

// HandleLogout 处理登出请求
func (s *AuthService) HandleLogout(c *gin.Context) {
	token, bearer := tokenFromRequest(c)
	if token != "" {
		if !bearer && currentSession(c) != nil && !VerifyCSRF(c) {
			RespondErrorMsg(c, http.StatusForbidden, "CSRF verification failed")
			return
		}
		s.DeleteSession(token)
	}
	if wantsJSON(c) || bearer {
		RespondJSON(c, http.StatusOK, gin.H{"message": "logged out"})
		return
	}
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(SessionCookie, "", -1, "/", "", c.Request.TLS != nil, true)
	c.Redirect(http.StatusFound, LoginPath)
}
