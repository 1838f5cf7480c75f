package zlib

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"net/url"
	"strings"
	"sync"
)

const (
	cookieUserKey = "remix_userkey"
	cookieUserID  = "remix_userid"
)

// Session holds the cookies of a logged in account. One Session is shared by
// a Client and every Paginator it creates.
//
// Login and Logout replace the cookies wholesale. Swapping credentials while
// requests are in flight is the caller's responsibility: a request already
// issued keeps the cookies it was started with.
type Session struct {
	mu      sync.RWMutex
	cookies map[string]string
}

// Cookies returns a copy of the session cookies
func (s *Session) Cookies() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return maps.Clone(s.cookies)
}

// LoggedIn reports whether the session carries account cookies
func (s *Session) LoggedIn() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cookies[cookieUserKey] != "" && s.cookies[cookieUserID] != ""
}

func (s *Session) replace(cookies map[string]string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies = maps.Clone(cookies)
}

func (s *Session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cookies = nil
}

type loginResponse struct {
	Response struct {
		ValidationError any    `json:"validationError"`
		Message         string `json:"message"`
	} `json:"response"`
}

func loginForm(email, password string) map[string]string {
	return map[string]string{
		"isModal":       "true",
		"email":         email,
		"password":      password,
		"site_mode":     "books",
		"action":        "login",
		"isSingleLogin": "1",
		"redirectUrl":   "",
		"gg_json_mode":  "1",
	}
}

// Login authenticates and replaces the session cookies. The previous
// session survives a failed attempt.
func (c *Client) Login(ctx context.Context, email, password string) (map[string]string, error) {
	body, cookies, err := c.http.Post(ctx, c.loginURL(), loginForm(email, password))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAuthFailed, err)
	}

	var res loginResponse
	if err := json.Unmarshal([]byte(body), &res); err == nil && hasValidationError(res.Response.ValidationError) {
		msg := res.Response.Message
		if msg == "" {
			msg = "credentials rejected"
		}
		return nil, fmt.Errorf("%w: %s", ErrAuthFailed, msg)
	}

	if cookies[cookieUserKey] == "" || cookies[cookieUserID] == "" {
		return nil, fmt.Errorf("%w: response carried no session cookies", ErrAuthFailed)
	}

	if c.opts.Onion {
		finalise := fmt.Sprintf("%s/?%s=%s&%s=%s",
			strings.TrimRight(c.opts.OnionDomain, "/"),
			cookieUserKey, url.QueryEscape(cookies[cookieUserKey]),
			cookieUserID, url.QueryEscape(cookies[cookieUserID]),
		)
		_, extra, err := c.http.GetWithCookies(ctx, finalise, cookies)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrAuthFailed, err)
		}
		merged := maps.Clone(cookies)
		maps.Copy(merged, extra)
		cookies = merged
	}

	c.session.replace(cookies)
	c.log.Debug("logged in", "cookies", len(cookies))
	return maps.Clone(cookies), nil
}

// Logout drops the session cookies
func (c *Client) Logout() {
	c.session.clear()
	c.log.Debug("logged out")
}

// RestoreSession reinstates cookies from an earlier Login
func (c *Client) RestoreSession(cookies map[string]string) {
	c.session.replace(cookies)
	c.log.Debug("restored session", "cookies", len(cookies))
}

// Session returns the shared session
func (c *Client) Session() *Session {
	return c.session
}

func hasValidationError(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	default:
		return true
	}
}
