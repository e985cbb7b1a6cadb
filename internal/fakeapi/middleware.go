package fakeapi

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	bearerPrefix   = "Bearer "
	csrfCookieName = "csrf_token"
	csrfHeaderName = "X-CSRF-Token"
)

var (
	ErrMissingAuthHeader = errors.New("missing authorization header")
	ErrInvalidAuthFormat = errors.New("invalid authorization header format")
	ErrEmptyToken        = errors.New("empty token")
	ErrUserNotFound      = errors.New("user not found")
)

func extractBearerToken(authHeader string) (string, error) {
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}

	if !strings.HasPrefix(authHeader, bearerPrefix) {
		return "", ErrInvalidAuthFormat
	}

	token := strings.TrimPrefix(authHeader, bearerPrefix)
	if token == "" {
		return "", ErrEmptyToken
	}

	return token, nil
}

func (s *Server) respondWithError(c *gin.Context, statusCode int, err error, message string) {
	s.log.Warn().Err(err).Str("path", c.Request.URL.Path).Msg(message)
	c.JSON(statusCode, gin.H{"error": message})
	c.Abort()
}

func currentUser(c *gin.Context) (User, bool) {
	v, ok := c.Get("user")
	if !ok {
		return User{}, false
	}
	u, ok := v.(User)
	return u, ok
}

// authFailure describes why a bearer token was refused
type authFailure struct {
	status  int
	err     error
	message string
}

// authenticate resolves the bearer token to a live, unblocked account
func (s *Server) authenticate(c *gin.Context) (User, *authFailure) {
	token, err := extractBearerToken(c.GetHeader("Authorization"))
	if err != nil {
		var message string
		switch err {
		case ErrMissingAuthHeader:
			message = "Missing authorization header"
		case ErrInvalidAuthFormat:
			message = "Invalid authorization header format"
		case ErrEmptyToken:
			message = "Empty token"
		}
		return User{}, &authFailure{http.StatusUnauthorized, err, message}
	}

	claims, err := s.validateToken(token)
	if err != nil {
		return User{}, &authFailure{http.StatusUnauthorized, err, "Invalid or expired token"}
	}

	user, err := s.store.user(claims.UserID)
	if err != nil {
		return User{}, &authFailure{http.StatusUnauthorized, ErrUserNotFound, "User not found"}
	}
	if user.Blocked {
		return User{}, &authFailure{http.StatusForbidden, errors.New("blocked"), "Account is blocked"}
	}

	return user, nil
}

// jwtAuth requires a valid bearer token
func (s *Server) jwtAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, failure := s.authenticate(c)
		if failure != nil {
			s.respondWithError(c, failure.status, failure.err, failure.message)
			return
		}
		c.Set("user", user)
		c.Next()
	}
}

// optionalAuth attaches the caller when a valid token is present and
// otherwise lets the request through anonymously
func (s *Server) optionalAuth() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetHeader("Authorization") != "" {
			if user, failure := s.authenticate(c); failure == nil {
				c.Set("user", user)
			}
		}
		c.Next()
	}
}

// roleOr admits only the listed roles
func (s *Server) roleOr(roles ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok {
			s.respondWithError(c, http.StatusUnauthorized, errors.New("no session"), "Unauthorized")
			return
		}
		for _, role := range roles {
			if user.Role == role {
				c.Next()
				return
			}
		}
		s.respondWithError(c, http.StatusForbidden, errors.New("insufficient role"), "Insufficient permissions")
	}
}

// csrf enforces the double-submit cookie on state-changing requests
func (s *Server) csrf() gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}

		header := c.GetHeader(csrfHeaderName)
		if header == "" {
			s.respondWithError(c, http.StatusForbidden, errors.New("no csrf header"), "CSRF token missing")
			return
		}

		cookie, err := c.Cookie(csrfCookieName)
		if err != nil || cookie == "" {
			s.respondWithError(c, http.StatusForbidden, errors.New("no csrf cookie"), "CSRF cookie missing")
			return
		}

		s.mu.Lock()
		known := s.csrfTokens[header]
		s.mu.Unlock()

		if subtle.ConstantTimeCompare([]byte(header), []byte(cookie)) != 1 || !known {
			s.respondWithError(c, http.StatusForbidden, errors.New("csrf mismatch"), "CSRF token invalid")
			return
		}

		c.Next()
	}
}
