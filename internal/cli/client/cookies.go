package client

import (
	"encoding/json"
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog"

	"github.com/petshop-dev/petshop/internal/session"
)

// csrfCookieName is the double-submit cookie the backend pairs with the
// CSRF token
const csrfCookieName = "csrf_token"

// storedCookie is the persisted form of the CSRF cookie
type storedCookie struct {
	Host    string    `json:"host"`
	Value   string    `json:"value"`
	Path    string    `json:"path,omitempty"`
	Expires time.Time `json:"expires,omitempty"`
}

// sessionJar mirrors the CSRF cookie into the session store, so a token
// cached by an earlier process still has its cookie in the next one.
type sessionJar struct {
	http.CookieJar
	session *session.Store
	log     zerolog.Logger
}

func (j *sessionJar) SetCookies(u *url.URL, cookies []*http.Cookie) {
	j.CookieJar.SetCookies(u, cookies)

	for _, ck := range cookies {
		if ck.Name != csrfCookieName {
			continue
		}

		value := ""
		if ck.MaxAge >= 0 && ck.Value != "" {
			value = encodeCookie(u, ck, time.Now())
		}
		if err := j.session.SetCSRFCookie(value); err != nil {
			j.log.Warn().Err(err).Msg("Failed to persist CSRF cookie")
		}
	}
}

// restore puts a persisted CSRF cookie back into the jar when it belongs
// to base and has not expired
func (j *sessionJar) restore(base *url.URL, now time.Time) {
	raw := j.session.CSRFCookie()
	if raw == "" {
		return
	}

	var stored storedCookie
	if err := json.Unmarshal([]byte(raw), &stored); err != nil {
		j.log.Debug().Err(err).Msg("Ignoring unreadable CSRF cookie")
		return
	}
	if stored.Host != base.Host || stored.Value == "" {
		return
	}
	if !stored.Expires.IsZero() && !now.Before(stored.Expires) {
		return
	}

	path := stored.Path
	if path == "" {
		path = "/"
	}
	j.CookieJar.SetCookies(base, []*http.Cookie{{
		Name:    csrfCookieName,
		Value:   stored.Value,
		Path:    path,
		Expires: stored.Expires,
	}})
}

func encodeCookie(u *url.URL, ck *http.Cookie, now time.Time) string {
	stored := storedCookie{Host: u.Host, Value: ck.Value, Path: ck.Path, Expires: ck.Expires}
	if ck.MaxAge > 0 {
		stored.Expires = now.Add(time.Duration(ck.MaxAge) * time.Second)
	}
	data, err := json.Marshal(stored)
	if err != nil {
		return ""
	}
	return string(data)
}
