package fakeapi

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

type registerRequest struct {
	FirstName string `json:"firstName" validate:"required,min=2,max=50"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type profileUpdate struct {
	FirstName string `json:"firstName" validate:"omitempty,min=2,max=50"`
	LastName  string `json:"lastName" validate:"omitempty,min=2,max=50"`
	Email     string `json:"email" validate:"omitempty,email"`
	Image     string `json:"image" validate:"omitempty,url"`
}

type roleChange struct {
	Role string `json:"role" validate:"required,oneof=user manager admin"`
}

func respondOK(c *gin.Context, status int, message string, data any) {
	body := gin.H{"success": true, "data": data}
	if message != "" {
		body["message"] = message
	}
	c.JSON(status, body)
}

func respondFail(c *gin.Context, status int, message string) {
	c.JSON(status, gin.H{"success": false, "message": message})
}

// bind decodes and validates a JSON body, answering 400 on failure
func (s *Server) bind(c *gin.Context, v any) bool {
	if err := c.ShouldBindJSON(v); err != nil {
		respondFail(c, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	if err := s.validator.Struct(v); err != nil {
		respondFail(c, http.StatusBadRequest, "Validation failed: "+err.Error())
		return false
	}
	return true
}

func idParam(c *gin.Context) (uint, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		respondFail(c, http.StatusBadRequest, "Invalid ID")
		return 0, false
	}
	return uint(id), true
}

func isStaff(u User) bool {
	return u.Role == "manager" || u.Role == "admin"
}

func (s *Server) issueToken(c *gin.Context, status int, message string, user User) {
	token, err := s.generateToken(user)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to generate token")
		respondFail(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	respondOK(c, status, message, gin.H{"token": token, "user": user})
}

func (s *Server) handleRegister(c *gin.Context) {
	var req registerRequest
	if !s.bind(c, &req) {
		return
	}

	user, err := s.store.createUser(User{FirstName: req.FirstName, LastName: req.LastName, Email: req.Email}, req.Password)
	if errors.Is(err, errEmailTaken) {
		respondFail(c, http.StatusConflict, "User with this email already exists")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to create user")
		respondFail(c, http.StatusInternalServerError, "Failed to create user")
		return
	}

	s.issueToken(c, http.StatusCreated, "User registered successfully", user)
}

func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if !s.bind(c, &req) {
		return
	}

	user, err := s.store.authenticate(req.Email, req.Password)
	if err != nil {
		respondFail(c, http.StatusUnauthorized, "Invalid email or password")
		return
	}
	if user.Blocked {
		respondFail(c, http.StatusForbidden, "Account is blocked")
		return
	}

	s.issueToken(c, http.StatusOK, "Login successful", user)
}

func (s *Server) handleRefresh(c *gin.Context) {
	user, _ := currentUser(c)
	token, err := s.generateToken(user)
	if err != nil {
		respondFail(c, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	respondOK(c, http.StatusOK, "", gin.H{"token": token})
}

// handleCSRFToken issues a token as both a cookie and a JSON body. The
// payload is not enveloped.
func (s *Server) handleCSRFToken(c *gin.Context) {
	token, err := randomToken(32)
	if err != nil {
		respondFail(c, http.StatusInternalServerError, "Failed to generate CSRF token")
		return
	}

	s.mu.Lock()
	s.csrfTokens[token] = true
	s.csrfIssued++
	s.mu.Unlock()

	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(csrfCookieName, token, int((12 * time.Hour).Seconds()), "/", "", false, false)
	c.JSON(http.StatusOK, gin.H{"csrf_token": token})
}

func (s *Server) handleUpdateProfile(c *gin.Context) {
	var req profileUpdate
	if !s.bind(c, &req) {
		return
	}

	user, _ := currentUser(c)
	updated, err := s.store.updateUser(user.ID, func(u *User) { applyProfile(u, req) })
	if err != nil {
		respondFail(c, http.StatusNotFound, "User not found")
		return
	}
	respondOK(c, http.StatusOK, "Profile updated", updated)
}

func applyProfile(u *User, req profileUpdate) {
	if req.FirstName != "" {
		u.FirstName = req.FirstName
	}
	if req.LastName != "" {
		u.LastName = req.LastName
	}
	if req.Email != "" {
		u.Email = req.Email
	}
	if req.Image != "" {
		u.Image = req.Image
	}
}

// ownerFilter turns the owner_id query into a visibility predicate.
// Anonymous callers only see store items, customers see store items plus
// their own, and staff see everything.
func ownerFilter(c *gin.Context) (func(ownerID uint) bool, bool) {
	user, authed := currentUser(c)
	staff := authed && isStaff(user)

	switch owner := c.Query("owner_id"); owner {
	case "":
		switch {
		case staff:
			return func(uint) bool { return true }, true
		case authed:
			return func(id uint) bool { return id == 0 || id == user.ID }, true
		default:
			return func(id uint) bool { return id == 0 }, true
		}
	case "0":
		return func(id uint) bool { return id == 0 }, true
	case "me":
		if !authed {
			respondFail(c, http.StatusUnauthorized, "Authentication required")
			return nil, false
		}
		return func(id uint) bool { return id == user.ID }, true
	default:
		want, err := strconv.ParseUint(owner, 10, 64)
		if err != nil {
			respondFail(c, http.StatusBadRequest, "Invalid owner_id")
			return nil, false
		}
		if !staff && (!authed || uint(want) != user.ID) {
			respondFail(c, http.StatusForbidden, "Insufficient permissions")
			return nil, false
		}
		return func(id uint) bool { return id == uint(want) }, true
	}
}

func (s *Server) handleListPets(c *gin.Context) {
	visible, valid := ownerFilter(c)
	if !valid {
		return
	}
	respondOK(c, http.StatusOK, "", s.store.listPets(visible))
}

func (s *Server) handleMyPets(c *gin.Context) {
	user, _ := currentUser(c)
	respondOK(c, http.StatusOK, "", s.store.listPets(func(id uint) bool { return id == user.ID }))
}

func (s *Server) handleGetPet(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}
	pet, err := s.store.pet(id)
	if err != nil {
		respondFail(c, http.StatusNotFound, "Pet not found")
		return
	}
	respondOK(c, http.StatusOK, "", pet)
}

func (s *Server) handleCreatePet(c *gin.Context) {
	var pet Pet
	if !s.bind(c, &pet) {
		return
	}
	pet.ID, pet.OwnerID = 0, 0
	respondOK(c, http.StatusCreated, "Pet created", s.store.putPet(pet))
}

func (s *Server) handleUpdatePet(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}
	if _, err := s.store.pet(id); err != nil {
		respondFail(c, http.StatusNotFound, "Pet not found")
		return
	}

	var pet Pet
	if !s.bind(c, &pet) {
		return
	}
	pet.ID = id
	respondOK(c, http.StatusOK, "Pet updated", s.store.putPet(pet))
}

func (s *Server) handleDeletePet(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}
	pet, err := s.store.pet(id)
	if err != nil {
		respondFail(c, http.StatusNotFound, "Pet not found")
		return
	}

	user, _ := currentUser(c)
	if !isStaff(user) && pet.OwnerID != user.ID {
		respondFail(c, http.StatusForbidden, "You can only delete your own pets")
		return
	}

	if err := s.store.deletePet(id); err != nil {
		respondFail(c, http.StatusNotFound, "Pet not found")
		return
	}
	respondOK(c, http.StatusOK, "Pet deleted", nil)
}

func (s *Server) handleBuyPet(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}

	user, _ := currentUser(c)
	pet, err := s.store.buyPet(id, user.ID)
	switch {
	case errors.Is(err, errNotFound):
		respondFail(c, http.StatusNotFound, "Pet not found")
	case errors.Is(err, errAlreadyOwned):
		respondFail(c, http.StatusConflict, "Pet is not available")
	case err != nil:
		respondFail(c, http.StatusInternalServerError, "Failed to buy pet")
	default:
		respondOK(c, http.StatusOK, "Pet purchased", pet)
	}
}

func (s *Server) handleListProducts(c *gin.Context) {
	visible, valid := ownerFilter(c)
	if !valid {
		return
	}
	respondOK(c, http.StatusOK, "", s.store.listProducts(visible))
}

func (s *Server) handleMyProducts(c *gin.Context) {
	user, _ := currentUser(c)
	respondOK(c, http.StatusOK, "", s.store.listProducts(func(id uint) bool { return id == user.ID }))
}

func (s *Server) handleGetProduct(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}
	product, err := s.store.product(id)
	if err != nil {
		respondFail(c, http.StatusNotFound, "Product not found")
		return
	}
	respondOK(c, http.StatusOK, "", product)
}

func (s *Server) handleCreateProduct(c *gin.Context) {
	var product Product
	if !s.bind(c, &product) {
		return
	}
	product.ID, product.OwnerID = 0, 0
	respondOK(c, http.StatusCreated, "Product created", s.store.putProduct(product))
}

func (s *Server) handleUpdateProduct(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}
	if _, err := s.store.product(id); err != nil {
		respondFail(c, http.StatusNotFound, "Product not found")
		return
	}

	var product Product
	if !s.bind(c, &product) {
		return
	}
	product.ID = id
	respondOK(c, http.StatusOK, "Product updated", s.store.putProduct(product))
}

func (s *Server) handleDeleteProduct(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}
	product, err := s.store.product(id)
	if err != nil {
		respondFail(c, http.StatusNotFound, "Product not found")
		return
	}

	user, _ := currentUser(c)
	if !isStaff(user) && product.OwnerID != user.ID {
		respondFail(c, http.StatusForbidden, "You can only delete your own products")
		return
	}

	if err := s.store.deleteProduct(id); err != nil {
		respondFail(c, http.StatusNotFound, "Product not found")
		return
	}
	respondOK(c, http.StatusOK, "Product deleted", nil)
}

func (s *Server) handleBuyProduct(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}

	user, _ := currentUser(c)
	product, err := s.store.buyProduct(id, user.ID)
	switch {
	case errors.Is(err, errNotFound):
		respondFail(c, http.StatusNotFound, "Product not found")
	case errors.Is(err, errAlreadyOwned):
		respondFail(c, http.StatusConflict, "Product is not available")
	case err != nil:
		respondFail(c, http.StatusInternalServerError, "Failed to buy product")
	default:
		respondOK(c, http.StatusOK, "Product purchased", product)
	}
}

func (s *Server) handleListUsers(c *gin.Context) {
	respondOK(c, http.StatusOK, "", s.store.listUsers())
}

func (s *Server) handleGetUser(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}
	user, err := s.store.user(id)
	if err != nil {
		respondFail(c, http.StatusNotFound, "User not found")
		return
	}
	respondOK(c, http.StatusOK, "", user)
}

func (s *Server) handleAdminUpdateUser(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}
	var req profileUpdate
	if !s.bind(c, &req) {
		return
	}
	s.respondUser(c, id, "User updated", func(u *User) { applyProfile(u, req) })
}

func (s *Server) handleBlockUser(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}
	if admin, _ := currentUser(c); admin.ID == id {
		respondFail(c, http.StatusBadRequest, "You cannot block yourself")
		return
	}
	s.respondUser(c, id, "User blocked", func(u *User) { u.Blocked = true })
}

func (s *Server) handleUnblockUser(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}
	s.respondUser(c, id, "User unblocked", func(u *User) { u.Blocked = false })
}

func (s *Server) handleChangeRole(c *gin.Context) {
	id, valid := idParam(c)
	if !valid {
		return
	}
	var req roleChange
	if !s.bind(c, &req) {
		return
	}
	s.respondUser(c, id, "Role updated", func(u *User) { u.Role = req.Role })
}

func (s *Server) respondUser(c *gin.Context, id uint, message string, fn func(u *User)) {
	user, err := s.store.updateUser(id, fn)
	if err != nil {
		respondFail(c, http.StatusNotFound, "User not found")
		return
	}
	respondOK(c, http.StatusOK, message, user)
}

func (s *Server) handleStats(c *gin.Context) {
	respondOK(c, http.StatusOK, "", s.store.stats())
}

// handleHealth is not enveloped
func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}
