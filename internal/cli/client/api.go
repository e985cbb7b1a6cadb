package client

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/petshop-dev/petshop/internal/session"
)

// call runs a request and decodes the envelope's data into out, if given
func (c *Client) call(ctx context.Context, method, path string, query url.Values, body, out any) error {
	resp, err := c.Do(ctx, Request{Method: method, Path: path, Query: query, Body: body})
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return resp.DecodeData(out)
}

// Login exchanges credentials for a token. The session is not touched;
// the caller decides whether to call session.Login.
func (c *Client) Login(ctx context.Context, email, password string) (*AuthResponse, error) {
	var auth AuthResponse
	if err := c.call(ctx, http.MethodPost, "/login", nil, LoginRequest{Email: email, Password: password}, &auth); err != nil {
		return nil, err
	}
	if auth.Token == "" {
		return nil, fmt.Errorf("login response did not include a token")
	}
	return &auth, nil
}

// Register creates a customer account and returns its first token
func (c *Client) Register(ctx context.Context, req RegisterRequest) (*AuthResponse, error) {
	var auth AuthResponse
	if err := c.call(ctx, http.MethodPost, "/register", nil, req, &auth); err != nil {
		return nil, err
	}
	if auth.Token == "" {
		return nil, fmt.Errorf("registration response did not include a token")
	}
	return &auth, nil
}

// RefreshToken asks for a new token for the current session
func (c *Client) RefreshToken(ctx context.Context) (string, error) {
	var payload struct {
		Token string `json:"token"`
	}
	if err := c.call(ctx, http.MethodPost, "/refresh", nil, nil, &payload); err != nil {
		return "", err
	}
	if payload.Token == "" {
		return "", fmt.Errorf("refresh response did not include a token")
	}
	return payload.Token, nil
}

// UpdateProfile changes the current user's own profile
func (c *Client) UpdateProfile(ctx context.Context, update ProfileUpdate) (*session.UserSummary, error) {
	var user session.UserSummary
	if err := c.call(ctx, http.MethodPut, "/user", nil, update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

func listQuery(filter ListFilter) url.Values {
	if filter.Owner == "" {
		return nil
	}
	return url.Values{"owner_id": []string{filter.Owner}}
}

// ListPets returns the pets visible to the caller
func (c *Client) ListPets(ctx context.Context, filter ListFilter) ([]Pet, error) {
	var pets []Pet
	if err := c.call(ctx, http.MethodGet, "/pets", listQuery(filter), nil, &pets); err != nil {
		return nil, err
	}
	return pets, nil
}

// GetPet returns one pet
func (c *Client) GetPet(ctx context.Context, id uint) (*Pet, error) {
	var pet Pet
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/pets/%d", id), nil, nil, &pet); err != nil {
		return nil, err
	}
	return &pet, nil
}

// CreatePet adds a pet to the store inventory
func (c *Client) CreatePet(ctx context.Context, input PetInput) (*Pet, error) {
	var pet Pet
	if err := c.call(ctx, http.MethodPost, "/pets", nil, input, &pet); err != nil {
		return nil, err
	}
	return &pet, nil
}

// UpdatePet replaces a pet's writable fields
func (c *Client) UpdatePet(ctx context.Context, id uint, input PetInput) (*Pet, error) {
	var pet Pet
	if err := c.call(ctx, http.MethodPut, fmt.Sprintf("/pets/%d", id), nil, input, &pet); err != nil {
		return nil, err
	}
	return &pet, nil
}

// DeletePet removes a pet
func (c *Client) DeletePet(ctx context.Context, id uint) error {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("/pets/%d", id), nil, nil, nil)
}

// BuyPet transfers a store pet to the current user
func (c *Client) BuyPet(ctx context.Context, id uint) (*Pet, error) {
	var pet Pet
	if err := c.call(ctx, http.MethodPost, fmt.Sprintf("/pets/%d/buy", id), nil, nil, &pet); err != nil {
		return nil, err
	}
	return &pet, nil
}

// MyPets returns the pets owned by the current user
func (c *Client) MyPets(ctx context.Context) ([]Pet, error) {
	var pets []Pet
	if err := c.call(ctx, http.MethodGet, "/my/pets", nil, nil, &pets); err != nil {
		return nil, err
	}
	return pets, nil
}

// ListProducts returns the products visible to the caller
func (c *Client) ListProducts(ctx context.Context, filter ListFilter) ([]Product, error) {
	var products []Product
	if err := c.call(ctx, http.MethodGet, "/products", listQuery(filter), nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// GetProduct returns one product
func (c *Client) GetProduct(ctx context.Context, id uint) (*Product, error) {
	var product Product
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/products/%d", id), nil, nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// CreateProduct adds a product to the store inventory
func (c *Client) CreateProduct(ctx context.Context, input ProductInput) (*Product, error) {
	var product Product
	if err := c.call(ctx, http.MethodPost, "/products", nil, input, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// UpdateProduct replaces a product's writable fields
func (c *Client) UpdateProduct(ctx context.Context, id uint, input ProductInput) (*Product, error) {
	var product Product
	if err := c.call(ctx, http.MethodPut, fmt.Sprintf("/products/%d", id), nil, input, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// DeleteProduct removes a product
func (c *Client) DeleteProduct(ctx context.Context, id uint) error {
	return c.call(ctx, http.MethodDelete, fmt.Sprintf("/products/%d", id), nil, nil, nil)
}

// BuyProduct transfers a store product to the current user
func (c *Client) BuyProduct(ctx context.Context, id uint) (*Product, error) {
	var product Product
	if err := c.call(ctx, http.MethodPost, fmt.Sprintf("/products/%d/buy", id), nil, nil, &product); err != nil {
		return nil, err
	}
	return &product, nil
}

// MyProducts returns the products owned by the current user
func (c *Client) MyProducts(ctx context.Context) ([]Product, error) {
	var products []Product
	if err := c.call(ctx, http.MethodGet, "/my/products", nil, nil, &products); err != nil {
		return nil, err
	}
	return products, nil
}

// ListUsers returns every account (admin only)
func (c *Client) ListUsers(ctx context.Context) ([]session.UserSummary, error) {
	var users []session.UserSummary
	if err := c.call(ctx, http.MethodGet, "/admin/users", nil, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

// GetUser returns one account (admin only)
func (c *Client) GetUser(ctx context.Context, id uint) (*session.UserSummary, error) {
	var user session.UserSummary
	if err := c.call(ctx, http.MethodGet, fmt.Sprintf("/admin/users/%d", id), nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdateUser edits another account's profile (admin only)
func (c *Client) UpdateUser(ctx context.Context, id uint, update ProfileUpdate) (*session.UserSummary, error) {
	var user session.UserSummary
	if err := c.call(ctx, http.MethodPut, fmt.Sprintf("/admin/users/%d", id), nil, update, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// BlockUser prevents an account from logging in (admin only)
func (c *Client) BlockUser(ctx context.Context, id uint) (*session.UserSummary, error) {
	return c.userAction(ctx, id, "block")
}

// UnblockUser restores a blocked account (admin only)
func (c *Client) UnblockUser(ctx context.Context, id uint) (*session.UserSummary, error) {
	return c.userAction(ctx, id, "unblock")
}

func (c *Client) userAction(ctx context.Context, id uint, action string) (*session.UserSummary, error) {
	var user session.UserSummary
	if err := c.call(ctx, http.MethodPost, fmt.Sprintf("/admin/users/%d/%s", id, action), nil, nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// ChangeRole sets an account's role (admin only)
func (c *Client) ChangeRole(ctx context.Context, id uint, change RoleChange) (*session.UserSummary, error) {
	var user session.UserSummary
	if err := c.call(ctx, http.MethodPut, fmt.Sprintf("/admin/users/%d/role", id), nil, change, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// Stats returns the storefront counters
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	var stats Stats
	if err := c.call(ctx, http.MethodGet, "/stats", nil, nil, &stats); err != nil {
		return nil, err
	}
	return &stats, nil
}

// Health checks the backend. The payload is not enveloped.
func (c *Client) Health(ctx context.Context) (*Health, error) {
	resp, err := c.Do(ctx, Request{Method: http.MethodGet, Path: "/health"})
	if err != nil {
		return nil, err
	}

	var health Health
	if err := resp.Decode(&health); err != nil {
		return nil, err
	}
	return &health, nil
}
