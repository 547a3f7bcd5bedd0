package session

import (
	"context"
	"errors"
	"net/http"
	"time"
)

// expiredCookieValue overwrites an invalidated cookie
const expiredCookieValue = "./?"

// SessionLeases stores leases in the backend under one session
type SessionLeases struct {
	backend   Backend
	sessionID string
}

// NewSessionLeases binds a backend to a session id
func NewSessionLeases(backend Backend, sessionID string) *SessionLeases {
	return &SessionLeases{backend: backend, sessionID: sessionID}
}

func (s *SessionLeases) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	if s.sessionID == "" {
		return errors.New("no session")
	}
	return s.backend.Set(ctx, s.sessionID, key, value, ttl)
}

func (s *SessionLeases) Get(ctx context.Context, key string) (string, bool, error) {
	if s.sessionID == "" {
		return "", false, nil
	}
	return s.backend.Get(ctx, s.sessionID, key)
}

func (s *SessionLeases) Invalidate(ctx context.Context, key string) error {
	if s.sessionID == "" {
		return nil
	}
	return s.backend.Delete(ctx, s.sessionID, key)
}

// CookieLeases stores leases as cookies on the user's browser. Cookies survive the
// trip to the gateway even when the session does not.
type CookieLeases struct {
	w   http.ResponseWriter
	r   *http.Request
	now func() time.Time
}

// NewCookieLeases creates cookie leases for one request
func NewCookieLeases(w http.ResponseWriter, r *http.Request) *CookieLeases {
	return &CookieLeases{w: w, r: r, now: time.Now}
}

// Put stores the value query-escaped so separators such as ';' and '"' survive
func (c *CookieLeases) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	cookie := newCookie(key, encodeCookieValue(value))
	cookie.Expires = c.now().Add(ttl)
	http.SetCookie(c.w, cookie)
	return nil
}

// Get reads the cookie sent with the request. A value previously written by
// Invalidate, or one that does not unescape, counts as missing.
func (c *CookieLeases) Get(ctx context.Context, key string) (string, bool, error) {
	cookie, err := c.r.Cookie(key)
	if err != nil {
		return "", false, nil
	}
	if cookie.Value == "" || cookie.Value == expiredCookieValue {
		return "", false, nil
	}
	value, ok := decodeCookieValue(cookie.Value)
	if !ok || value == "" {
		return "", false, nil
	}
	return value, true, nil
}

func (c *CookieLeases) Invalidate(ctx context.Context, key string) error {
	cookie := newCookie(key, expiredCookieValue)
	cookie.Expires = c.now()
	cookie.MaxAge = -1
	http.SetCookie(c.w, cookie)
	return nil
}

// LeaseStore is the subset of provider.LeaseStore the session package implements
type LeaseStore interface {
	Put(ctx context.Context, key, value string, ttl time.Duration) error
	Get(ctx context.Context, key string) (string, bool, error)
	Invalidate(ctx context.Context, key string) error
}

// MirroredLeases writes every lease to all stores and reads from the first store
// that has it.
type MirroredLeases struct {
	stores []LeaseStore
}

// NewMirroredLeases mirrors leases across stores in lookup order
func NewMirroredLeases(stores ...LeaseStore) *MirroredLeases {
	return &MirroredLeases{stores: stores}
}

// Put succeeds when at least one store accepted the value
func (m *MirroredLeases) Put(ctx context.Context, key, value string, ttl time.Duration) error {
	var errs []error
	for _, store := range m.stores {
		if err := store.Put(ctx, key, value, ttl); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == len(m.stores) {
		return errors.Join(errs...)
	}
	return nil
}

// Get falls through failing or empty stores
func (m *MirroredLeases) Get(ctx context.Context, key string) (string, bool, error) {
	var errs []error
	for _, store := range m.stores {
		value, ok, err := store.Get(ctx, key)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if ok {
			return value, true, nil
		}
	}
	return "", false, errors.Join(errs...)
}

func (m *MirroredLeases) Invalidate(ctx context.Context, key string) error {
	var errs []error
	for _, store := range m.stores {
		if err := store.Invalidate(ctx, key); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
