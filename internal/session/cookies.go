package session

import (
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"sync"
	"time"

	"github.com/spacefiler/spacefiler/internal/constants"
	"github.com/spacefiler/spacefiler/internal/logging"
)

// storedCookie is the persisted subset of http.Cookie.
type storedCookie struct {
	Name     string    `json:"name"`
	Value    string    `json:"value"`
	Path     string    `json:"path,omitempty"`
	Domain   string    `json:"domain,omitempty"`
	Expires  time.Time `json:"expires,omitempty"`
	Secure   bool      `json:"secure,omitempty"`
	HttpOnly bool      `json:"http_only,omitempty"`
}

// PersistentJar is a cookie jar whose contents survive between invocations.
// Cookies are recorded per request URL in the session scope and replayed
// into a fresh cookiejar.Jar on load.
type PersistentJar struct {
	jar    *cookiejar.Jar
	store  Store
	logger *logging.Logger

	mu      sync.Mutex
	records map[string][]storedCookie // url -> cookies set for it
}

// NewPersistentJar loads previously stored cookies from store.
func NewPersistentJar(store Store, logger *logging.Logger) (*PersistentJar, error) {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	pj := &PersistentJar{
		jar:     jar,
		store:   store,
		logger:  logger,
		records: make(map[string][]storedCookie),
	}

	if _, err := getJSON(store, ScopeSession, constants.KeyCookies, &pj.records); err != nil {
		// A corrupt cookie record only costs a re-login.
		logger.Warn().Err(err).Msg("Discarding stored cookies")
		pj.records = make(map[string][]storedCookie)
	}

	for raw, cookies := range pj.records {
		u, err := url.Parse(raw)
		if err != nil {
			continue
		}
		jar.SetCookies(u, toHTTP(cookies))
	}
	return pj, nil
}

func (p *PersistentJar) current() *cookiejar.Jar {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.jar
}

func (p *PersistentJar) Cookies(u *url.URL) []*http.Cookie {
	return p.current().Cookies(u)
}

func (p *PersistentJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	p.current().SetCookies(u, cookies)

	key := (&url.URL{Scheme: u.Scheme, Host: u.Host, Path: "/"}).String()

	p.mu.Lock()
	merged := mergeCookies(p.records[key], cookies)
	if len(merged) == 0 {
		delete(p.records, key)
	} else {
		p.records[key] = merged
	}
	snapshot := make(map[string][]storedCookie, len(p.records))
	for k, v := range p.records {
		snapshot[k] = v
	}
	p.mu.Unlock()

	if err := putJSON(p.store, ScopeSession, constants.KeyCookies, snapshot); err != nil {
		p.logger.Warn().Err(err).Msg("Failed to persist cookies")
	}
}

// Reset forgets every cookie, in memory and on disk.
func (p *PersistentJar) Reset() error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	p.mu.Lock()
	p.jar = jar
	p.records = make(map[string][]storedCookie)
	p.mu.Unlock()
	return p.store.Delete(ScopeSession, constants.KeyCookies)
}

// mergeCookies applies updates to existing by name. Expired or MaxAge<0
// cookies are removed.
func mergeCookies(existing []storedCookie, updates []*http.Cookie) []storedCookie {
	byName := make(map[string]storedCookie, len(existing))
	order := make([]string, 0, len(existing)+len(updates))
	for _, c := range existing {
		byName[c.Name] = c
		order = append(order, c.Name)
	}

	now := time.Now()
	for _, c := range updates {
		if _, seen := byName[c.Name]; !seen {
			order = append(order, c.Name)
		}
		if c.MaxAge < 0 || (!c.Expires.IsZero() && c.Expires.Before(now)) {
			delete(byName, c.Name)
			continue
		}
		expires := c.Expires
		if c.MaxAge > 0 {
			expires = now.Add(time.Duration(c.MaxAge) * time.Second)
		}
		byName[c.Name] = storedCookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		}
	}

	out := make([]storedCookie, 0, len(byName))
	for _, name := range order {
		if c, ok := byName[name]; ok {
			out = append(out, c)
			delete(byName, name)
		}
	}
	return out
}

func toHTTP(cookies []storedCookie) []*http.Cookie {
	out := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, &http.Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Path:     c.Path,
			Domain:   c.Domain,
			Expires:  c.Expires,
			Secure:   c.Secure,
			HttpOnly: c.HttpOnly,
		})
	}
	return out
}
