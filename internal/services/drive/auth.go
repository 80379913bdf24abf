package drive

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const scopeReadOnly = "https://www.googleapis.com/auth/drive.readonly"

type TokenReuse string

const (
	// ReuseCache keeps one token for the process and on disk.
	ReuseCache TokenReuse = "cache"
	// ReuseReauth forces a fresh interactive login on every Authenticate.
	ReuseReauth TokenReuse = "reauth"
)

type AuthConfig struct {
	// CredentialsFile is a Google OAuth client (installed app) or service
	// account JSON key.
	CredentialsFile string
	TokenReuse      TokenReuse
	// CacheDir overrides the token cache directory.
	CacheDir string
	// OnAuthURL is called with the consent URL of the interactive flow.
	OnAuthURL func(url string)
	// LoginTimeout bounds how long the browser login may take. Zero means 5m.
	LoginTimeout time.Duration
}

// Authenticator produces authorized HTTP clients for Drive.
type Authenticator struct {
	cfg AuthConfig

	mu    sync.Mutex
	token *oauth2.Token
	conf  *oauth2.Config
}

func NewAuthenticator(cfg AuthConfig) *Authenticator {
	if cfg.TokenReuse == "" {
		cfg.TokenReuse = ReuseCache
	}
	if cfg.LoginTimeout == 0 {
		cfg.LoginTimeout = 5 * time.Minute
	}
	return &Authenticator{cfg: cfg}
}

// Client returns an authorized client, logging in when required.
func (a *Authenticator) Client(ctx context.Context) (*http.Client, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	raw, err := os.ReadFile(a.cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read credentials: %v", ErrAuth, err)
	}

	if isServiceAccount(raw) {
		creds, err := google.CredentialsFromJSON(ctx, raw, scopeReadOnly)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return oauth2.NewClient(ctx, creds.TokenSource), nil
	}

	if a.conf == nil {
		conf, err := google.ConfigFromJSON(raw, scopeReadOnly)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAuth, err)
		}
		a.conf = conf
	}

	if a.cfg.TokenReuse == ReuseCache {
		if a.token == nil {
			a.token = a.readCache()
		}
		if a.token != nil {
			return a.clientFor(ctx, a.token), nil
		}
	}

	tok, err := a.login(ctx)
	if err != nil {
		return nil, err
	}
	a.token = tok
	if a.cfg.TokenReuse == ReuseCache {
		_ = a.writeCache(tok)
	}
	return a.clientFor(ctx, tok), nil
}

// Forget drops the in-memory and cached token.
func (a *Authenticator) Forget() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.token = nil
	if p, err := a.cachePath(); err == nil {
		_ = os.Remove(p)
	}
}

func (a *Authenticator) clientFor(ctx context.Context, tok *oauth2.Token) *http.Client {
	src := oauth2.ReuseTokenSource(tok, a.conf.TokenSource(ctx, tok))
	return oauth2.NewClient(ctx, &persistingSource{src: src, a: a})
}

// login runs the installed-app loopback flow with PKCE.
func (a *Authenticator) login(ctx context.Context) (*oauth2.Token, error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	defer ln.Close()

	conf := *a.conf
	conf.RedirectURL = "http://" + ln.Addr().String() + "/callback"
	verifier := oauth2.GenerateVerifier()
	state := fmt.Sprintf("fv2-%d", time.Now().UnixNano())
	authURL := conf.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.S256ChallengeOption(verifier))
	if a.cfg.OnAuthURL != nil {
		a.cfg.OnAuthURL(authURL)
	}

	type result struct {
		code string
		err  error
	}
	done := make(chan result, 1)
	srv := &http.Server{
		ReadHeaderTimeout: 10 * time.Second,
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/callback" {
				http.NotFound(w, r)
				return
			}
			q := r.URL.Query()
			var res result
			switch {
			case q.Get("state") != state:
				res.err = errors.New("state mismatch")
			case q.Get("error") != "":
				res.err = errors.New(q.Get("error"))
			default:
				res.code = q.Get("code")
			}
			select {
			case done <- res:
			default:
			}
			fmt.Fprintln(w, "Sign-in complete. You can return to the installer.")
		}),
	}
	go func() { _ = srv.Serve(ln) }()
	defer srv.Close()

	loginCtx, cancel := context.WithTimeout(ctx, a.cfg.LoginTimeout)
	defer cancel()

	select {
	case <-loginCtx.Done():
		return nil, fmt.Errorf("%w: %v", ErrAuth, loginCtx.Err())
	case res := <-done:
		if res.err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAuth, res.err)
		}
		tok, err := conf.Exchange(ctx, res.code, oauth2.VerifierOption(verifier))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrAuth, err)
		}
		return tok, nil
	}
}

func isServiceAccount(raw []byte) bool {
	var probe struct {
		Type string `json:"type"`
	}
	return json.Unmarshal(raw, &probe) == nil && probe.Type == "service_account"
}

// persistingSource writes refreshed tokens back to the cache.
type persistingSource struct {
	src oauth2.TokenSource
	a   *Authenticator

	mu   sync.Mutex
	last string
}

func (p *persistingSource) Token() (*oauth2.Token, error) {
	tok, err := p.src.Token()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAuth, err)
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if tok.AccessToken != p.last {
		p.last = tok.AccessToken
		if p.a.cfg.TokenReuse == ReuseCache {
			_ = p.a.writeCache(tok)
		}
	}
	return tok, nil
}

type cacheFile struct {
	Token   *oauth2.Token `json:"token"`
	SavedAt time.Time     `json:"saved_at"`
}

func (a *Authenticator) cachePath() (string, error) {
	dir := strings.TrimSpace(a.cfg.CacheDir)
	if dir == "" {
		base, err := os.UserCacheDir()
		if err != nil || base == "" {
			home, herr := os.UserHomeDir()
			if herr != nil {
				return "", herr
			}
			base = filepath.Join(home, ".cache")
		}
		dir = filepath.Join(base, "fv2-installer")
	}
	return filepath.Join(dir, "drive-token.json"), nil
}

func (a *Authenticator) readCache() *oauth2.Token {
	path, err := a.cachePath()
	if err != nil {
		return nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil
	}
	var f cacheFile
	if err := json.Unmarshal(b, &f); err != nil || f.Token == nil {
		return nil
	}
	// An expired access token is still useful when a refresh token exists.
	if !f.Token.Valid() && f.Token.RefreshToken == "" {
		return nil
	}
	return f.Token
}

func (a *Authenticator) writeCache(tok *oauth2.Token) error {
	path, err := a.cachePath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	b, err := json.MarshalIndent(cacheFile{Token: tok, SavedAt: time.Now()}, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o600)
}
