package session

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/gateprov/gateprov/internal/logging"
	"github.com/gateprov/gateprov/internal/remote/page"
	"github.com/gateprov/gateprov/internal/remote/token"
)

// Login form field vocabulary. The panel parses these by exact key.
const (
	loginPath          = "/login"
	fieldLoginUser     = "username"
	fieldLoginPassword = "password"
	fieldLoginToken    = "authenticity_token"
)

// Recorder receives remote round-trip outcomes for metrics.
type Recorder interface {
	RecordRemoteCall(instance, kind, status string)
	RecordRemoteError(instance, kind string)
}

// Config carries everything needed to open a session against one panel.
type Config struct {
	BaseURL  string
	Username string
	Password string

	UserAgent    string
	NavTimeout   time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	RatePerSec   float64

	Logger  *logging.Logger
	Tokens  *token.Resolver
	Metrics Recorder
}

func (c *Config) applyDefaults() {
	if c.UserAgent == "" {
		c.UserAgent = "gateprov/1.0"
	}
	if c.NavTimeout == 0 {
		c.NavTimeout = 10 * time.Second
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 30 * time.Second
	}
	if c.WriteTimeout == 0 {
		c.WriteTimeout = 120 * time.Second
	}
	if c.RatePerSec <= 0 {
		c.RatePerSec = 4
	}
	if c.Logger == nil {
		c.Logger = logging.NewNop()
	}
	if c.Tokens == nil {
		c.Tokens = token.NewResolver()
	}
}

// Session is one authenticated browsing context against one panel. A session
// is owned by a single workflow run; the token it carries is only valid for
// the session window that issued it and dies with the cookie jar.
type Session struct {
	cfg     Config
	base    *url.URL
	http    *resty.Client
	limiter *rate.Limiter
	log     *logging.Logger
	tokens  *token.Resolver

	Token         string
	EstablishedAt time.Time
}

// Establish logs into the panel and returns a live session: fetches the
// login page, extracts its anti-forgery token, posts credentials with
// redirects disabled, and verifies a session cookie came back.
func Establish(ctx context.Context, cfg Config) (*Session, error) {
	cfg.applyDefaults()

	base, err := url.Parse(cfg.BaseURL)
	if err != nil || base.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q", cfg.BaseURL)
	}

	s := &Session{
		cfg:     cfg,
		base:    base,
		http:    newClient(cfg),
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), 1),
		log:     cfg.Logger.Named("session"),
		tokens:  cfg.Tokens,
	}

	if err := s.login(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

// newClient builds the per-session HTTP client: its own cookie jar, redirect
// following disabled so cookie-bearing and Location-bearing responses stay
// inspectable, and retries restricted to idempotent reads. No client-level
// timeout: reads and writes carry different budgets, enforced per call
// through the request context.
func newClient(cfg Config) *resty.Client {
	retryClient := retryablehttp.NewClient()
	retryClient.Logger = nil

	jar, _ := cookiejar.New(nil)

	client := resty.New().
		SetCookieJar(jar).
		SetRedirectPolicy(resty.NoRedirectPolicy()).
		SetRetryCount(2).
		SetRetryWaitTime(time.Second).
		SetRetryMaxWaitTime(10 * time.Second).
		SetHeader("User-Agent", cfg.UserAgent).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			// Writes are never retried: a duplicate submission is worse
			// than a failed one.
			if r != nil && r.Request != nil && r.Request.Method != http.MethodGet {
				return false
			}
			// A 3xx with redirects disabled surfaces as an error but is a
			// usable answer, not a failure.
			if r != nil && r.StatusCode() >= http.StatusMultipleChoices && r.StatusCode() < http.StatusBadRequest {
				return false
			}
			return err != nil || (r != nil && r.StatusCode() >= http.StatusInternalServerError)
		})

	client.SetTransport(retryClient.HTTPClient.Transport)
	return client
}

// login performs the credential exchange for a fresh cookie jar.
func (s *Session) login(ctx context.Context) error {
	loginHTML, err := s.FetchLoginPage(ctx)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	tok, err := s.tokens.Resolve(loginHTML)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthTokenNotFound, err)
	}

	form := url.Values{}
	form.Set(fieldLoginUser, s.cfg.Username)
	form.Set(fieldLoginPassword, s.cfg.Password)
	form.Set(fieldLoginToken, tok)

	out, err := s.PostForm(ctx, loginPath, form)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrAuthenticationFailed, err)
	}

	// A successful login redirects away from the login form. A re-rendered
	// login page means the credentials were rejected.
	if out.Kind != page.KindRedirected || strings.Contains(out.Location, loginPath) {
		s.log.Warn("login rejected",
			zap.String("kind", out.Kind.String()),
			zap.Int("status", out.StatusCode))
		return ErrAuthenticationFailed
	}
	if len(s.http.GetClient().Jar.Cookies(s.base)) == 0 {
		return fmt.Errorf("%w: no session cookie issued", ErrAuthenticationFailed)
	}

	s.Token = tok
	s.EstablishedAt = time.Now()
	s.log.Info("session established",
		zap.String("host", s.base.Host),
		zap.String("redirect", out.Location))
	return nil
}

// Reauthenticate resets the session: new cookie jar, new login, new token.
// The previous token must never be replayed afterwards.
func (s *Session) Reauthenticate(ctx context.Context) error {
	s.Token = ""
	s.http = newClient(s.cfg)
	return s.login(ctx)
}

// FetchLoginPage fetches the login page fresh and returns its body.
func (s *Session) FetchLoginPage(ctx context.Context) (string, error) {
	out, err := s.Get(ctx, loginPath)
	if err != nil {
		return "", err
	}
	if out.Kind != page.KindRendered {
		return "", fmt.Errorf("login page not rendered (%s, status %d)", out.Kind, out.StatusCode)
	}
	return out.Body, nil
}

// RefreshToken re-resolves the session token from a fresh login-page fetch.
// The session cookie stays; only the token value is replaced.
func (s *Session) RefreshToken(ctx context.Context) error {
	html, err := s.FetchLoginPage(ctx)
	if err != nil {
		return err
	}
	tok, err := s.tokens.Resolve(html)
	if err != nil {
		return fmt.Errorf("%w: %v", token.ErrTokenNotFound, err)
	}
	s.Token = tok
	return nil
}

// BaseHost returns the host the session is bound to.
func (s *Session) BaseHost() string {
	return s.base.Host
}

func (s *Session) recordCall(kind string, status int) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordRemoteCall(s.base.Host, kind, strconv.Itoa(status))
	}
}

func (s *Session) recordError(kind string) {
	if s.cfg.Metrics != nil {
		s.cfg.Metrics.RecordRemoteError(s.base.Host, kind)
	}
}

// absolute resolves a path against the session base URL.
func (s *Session) absolute(path string) string {
	ref, err := url.Parse(path)
	if err != nil {
		return s.base.String() + path
	}
	return s.base.ResolveReference(ref).String()
}
