// Package fakeapi is an in-memory stand-in for the storefront backend.
//
// It reproduces the wire contract the CLI depends on (JWT bearer auth, the
// double-submit CSRF cookie, the {success, message, data} envelope, and the
// 401/403/429 responses) so the client pipeline can be exercised end to end
// in tests. It is not a backend: there is no persistence and only the
// business rules a client can observe.
package fakeapi

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Options configures a Server
type Options struct {
	JWTSecret   string
	TokenTTL    time.Duration
	CORSOrigins []string
	Logger      zerolog.Logger
}

// Server is the fake backend
type Server struct {
	router    *gin.Engine
	store     *store
	validator *validator.Validate
	log       zerolog.Logger
	jwtSecret []byte
	tokenTTL  time.Duration

	mu            sync.Mutex
	tokenEpoch    int
	csrfTokens    map[string]bool
	csrfIssued    int
	rateLimitNext int
	requests      []string
}

// New creates a fake backend with an empty store
func New(opts Options) *Server {
	if opts.JWTSecret == "" {
		opts.JWTSecret = "fakeapi-test-secret"
	}
	if opts.TokenTTL == 0 {
		opts.TokenTTL = time.Hour
	}
	if len(opts.CORSOrigins) == 0 {
		opts.CORSOrigins = []string{"http://localhost:5173"}
	}

	gin.SetMode(gin.TestMode)

	s := &Server{
		store:      newStore(),
		validator:  validator.New(validator.WithRequiredStructEnabled()),
		log:        opts.Logger,
		jwtSecret:  []byte(opts.JWTSecret),
		tokenTTL:   opts.TokenTTL,
		csrfTokens: make(map[string]bool),
	}
	s.router = s.setupRoutes(opts)

	return s
}

// Handler returns the HTTP handler, e.g. for httptest.NewServer
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes(opts Options) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(s.requestLogger())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     opts.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-CSRF-Token"},
		ExposeHeaders:    []string{"Content-Length", "Authorization"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(s.rateLimit())

	public := r.Group("/api")
	{
		public.POST("/register", s.handleRegister)
		public.POST("/login", s.handleLogin)
		public.GET("/pets", s.optionalAuth(), s.handleListPets)
		public.GET("/products", s.optionalAuth(), s.handleListProducts)
		public.GET("/stats", s.handleStats)
		public.GET("/health", s.handleHealth)
		public.GET("/csrf-token", s.handleCSRFToken)
	}

	protected := r.Group("/api", s.jwtAuth(), s.csrf())
	{
		protected.POST("/refresh", s.handleRefresh)
		protected.PUT("/user", s.handleUpdateProfile)
		protected.GET("/my/pets", s.handleMyPets)
		protected.GET("/my/products", s.handleMyProducts)
		protected.POST("/pets/:id/buy", s.handleBuyPet)
		protected.POST("/products/:id/buy", s.handleBuyProduct)
		protected.DELETE("/pets/:id", s.handleDeletePet)
		protected.DELETE("/products/:id", s.handleDeleteProduct)
	}

	manager := r.Group("/api", s.jwtAuth(), s.roleOr("manager", "admin"), s.csrf())
	{
		manager.POST("/pets", s.handleCreatePet)
		manager.GET("/pets/:id", s.handleGetPet)
		manager.PUT("/pets/:id", s.handleUpdatePet)
		manager.POST("/products", s.handleCreateProduct)
		manager.GET("/products/:id", s.handleGetProduct)
		manager.PUT("/products/:id", s.handleUpdateProduct)
	}

	admin := r.Group("/api/admin", s.jwtAuth(), s.roleOr("admin"), s.csrf())
	{
		admin.GET("/users", s.handleListUsers)
		admin.GET("/users/:id", s.handleGetUser)
		admin.PUT("/users/:id", s.handleAdminUpdateUser)
		admin.POST("/users/:id/block", s.handleBlockUser)
		admin.POST("/users/:id/unblock", s.handleUnblockUser)
		admin.PUT("/users/:id/role", s.handleChangeRole)
	}

	return r
}

// SeedUser creates an account directly, bypassing registration
func (s *Server) SeedUser(firstName, lastName, email, password, role string) (User, error) {
	return s.store.createUser(User{FirstName: firstName, LastName: lastName, Email: email, Role: role}, password)
}

// SeedPet adds a pet directly
func (s *Server) SeedPet(p Pet) Pet {
	p.ID = 0
	return s.store.putPet(p)
}

// SeedProduct adds a product directly
func (s *Server) SeedProduct(p Product) Product {
	p.ID = 0
	return s.store.putProduct(p)
}

// Pet returns a pet by ID
func (s *Server) Pet(id uint) (Pet, bool) {
	p, err := s.store.pet(id)
	return p, err == nil
}

// RateLimitNext makes the next n rate-limited requests fail with 429
func (s *Server) RateLimitNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rateLimitNext = n
}

// RevokeTokens invalidates every token issued so far
func (s *Server) RevokeTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenEpoch++
}

// InvalidateCSRF forgets every CSRF token issued so far
func (s *Server) InvalidateCSRF() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.csrfTokens = make(map[string]bool)
}

// CSRFTokensIssued reports how many times /csrf-token was served
func (s *Server) CSRFTokensIssued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.csrfIssued
}

// Requests returns "METHOD /path" for every request seen, in order
func (s *Server) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// ResetRequests clears the request log
func (s *Server) ResetRequests() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = nil
}

func (s *Server) currentEpoch() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return strconv.Itoa(s.tokenEpoch)
}

// requestLogger records every request and logs it with zerolog
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path

		s.mu.Lock()
		s.requests = append(s.requests, c.Request.Method+" "+path)
		s.mu.Unlock()

		c.Next()

		status := c.Writer.Status()
		event := s.log.Debug()
		if status >= 500 {
			event = s.log.Error()
		} else if status >= 400 {
			event = s.log.Info()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Msg("HTTP request")
	}
}

var rateLimitSkipPaths = []string{"/health", "/login", "/register", "/csrf-token"}

// rateLimit answers 429 while the RateLimitNext budget lasts
func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		path := c.Request.URL.Path
		for _, skip := range rateLimitSkipPaths {
			if strings.HasSuffix(path, skip) {
				c.Next()
				return
			}
		}

		s.mu.Lock()
		limited := s.rateLimitNext > 0
		if limited {
			s.rateLimitNext--
		}
		s.mu.Unlock()

		if limited {
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Rate limit exceeded"})
			c.Abort()
			return
		}
		c.Next()
	}
}
