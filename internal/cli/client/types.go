package client

import (
	"time"

	"github.com/petshop-dev/petshop/internal/session"
)

// AuthResponse is the data of a successful login or registration
type AuthResponse struct {
	Token string              `json:"token"`
	User  session.UserSummary `json:"user"`
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

// ProfileUpdate changes the current user's own profile. Empty fields are
// left unchanged by the server.
type ProfileUpdate struct {
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
	Image     string `json:"image,omitempty"`
}

// RoleChange is the body of an admin role change
type RoleChange struct {
	Role session.Role `json:"role"`
}

// Pet is a pet listing. OwnerID 0 means the store still owns it.
type Pet struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Breed       string    `json:"breed"`
	Age         int       `json:"age"`
	Gender      string    `json:"gender"`
	Sterilized  bool      `json:"sterilized"`
	Image       string    `json:"image,omitempty"`
	OwnerID     uint      `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// InStore reports whether the pet can still be bought
func (p Pet) InStore() bool {
	return p.OwnerID == 0
}

// PetInput is the writable part of a pet
type PetInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Breed       string  `json:"breed"`
	Age         int     `json:"age"`
	Gender      string  `json:"gender"`
	Sterilized  bool    `json:"sterilized"`
	Image       string  `json:"image,omitempty"`
}

// Input returns the writable fields of p
func (p Pet) Input() PetInput {
	return PetInput{
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Breed:       p.Breed,
		Age:         p.Age,
		Gender:      p.Gender,
		Sterilized:  p.Sterilized,
		Image:       p.Image,
	}
}

// Product is a pet-supply listing. OwnerID 0 means the store still owns it.
type Product struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Price       float64   `json:"price"`
	Stock       int       `json:"stock"`
	Category    string    `json:"category"`
	Brand       string    `json:"brand,omitempty"`
	Image       string    `json:"image,omitempty"`
	Mass        float64   `json:"mass"`
	OwnerID     uint      `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// InStore reports whether the product can still be bought
func (p Product) InStore() bool {
	return p.OwnerID == 0
}

// ProductInput is the writable part of a product
type ProductInput struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Price       float64 `json:"price"`
	Stock       int     `json:"stock"`
	Category    string  `json:"category"`
	Brand       string  `json:"brand,omitempty"`
	Image       string  `json:"image,omitempty"`
	Mass        float64 `json:"mass"`
}

// Input returns the writable fields of p
func (p Product) Input() ProductInput {
	return ProductInput{
		Name:        p.Name,
		Description: p.Description,
		Price:       p.Price,
		Stock:       p.Stock,
		Category:    p.Category,
		Brand:       p.Brand,
		Image:       p.Image,
		Mass:        p.Mass,
	}
}

// Stats are the storefront counters shown on the dashboards
type Stats struct {
	Users         int64 `json:"users"`
	TotalPets     int64 `json:"totalPets"`
	OwnedPets     int64 `json:"ownedPets"`
	StorePets     int64 `json:"storePets"`
	TotalProducts int64 `json:"totalProducts"`
	OwnedProducts int64 `json:"ownedProducts"`
	StoreProducts int64 `json:"storeProducts"`
}

// Health is the backend liveness payload
type Health struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// ListFilter narrows catalog listings. Owner is "" (everything visible to
// the caller), "0" (store items), "me", or a user ID.
type ListFilter struct {
	Owner string
}
