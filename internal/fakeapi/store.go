package fakeapi

import (
	"errors"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"
)

var (
	errNotFound     = errors.New("not found")
	errEmailTaken   = errors.New("email already registered")
	errAlreadyOwned = errors.New("already owned")
)

// User is an account held by the fake backend
type User struct {
	ID           uint      `json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `json:"email"`
	Role         string    `json:"role"`
	Image        string    `json:"image,omitempty"`
	Blocked      bool      `json:"blocked"`
	PasswordHash []byte    `json:"-"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Pet mirrors the backend pet model
type Pet struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name" validate:"required,min=1,max=100"`
	Description string    `json:"description" validate:"omitempty,max=500"`
	Price       float64   `json:"price" validate:"required,gt=0"`
	Breed       string    `json:"breed" validate:"required,min=2,max=50"`
	Age         int       `json:"age" validate:"gte=0,lte=30"`
	Gender      string    `json:"gender" validate:"required,oneof=male female"`
	Sterilized  bool      `json:"sterilized"`
	Image       string    `json:"image" validate:"omitempty,url"`
	OwnerID     uint      `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Product mirrors the backend product model
type Product struct {
	ID          uint      `json:"id"`
	Name        string    `json:"name" validate:"required,min=1,max=100"`
	Description string    `json:"description" validate:"omitempty,max=500"`
	Price       float64   `json:"price" validate:"required,gt=0"`
	Stock       int       `json:"stock" validate:"gte=0"`
	Category    string    `json:"category" validate:"required,min=2,max=50"`
	Brand       string    `json:"brand" validate:"omitempty,min=2,max=50"`
	Image       string    `json:"image" validate:"omitempty,url"`
	Mass        float64   `json:"mass" validate:"gte=0"`
	OwnerID     uint      `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// store is the in-memory state of the fake backend
type store struct {
	mu       sync.Mutex
	nextID   uint
	users    map[uint]*User
	pets     map[uint]*Pet
	products map[uint]*Product
}

func newStore() *store {
	return &store{
		users:    make(map[uint]*User),
		pets:     make(map[uint]*Pet),
		products: make(map[uint]*Product),
	}
}

func (s *store) id() uint {
	s.nextID++
	return s.nextID
}

func (s *store) createUser(u User, password string) (User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return User{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.users {
		if existing.Email == u.Email {
			return User{}, errEmailTaken
		}
	}

	now := time.Now().UTC()
	u.ID = s.id()
	u.PasswordHash = hash
	u.CreatedAt, u.UpdatedAt = now, now
	if u.Role == "" {
		u.Role = "user"
	}
	s.users[u.ID] = &u
	return u, nil
}

func (s *store) authenticate(email, password string) (User, error) {
	s.mu.Lock()
	var found *User
	for _, u := range s.users {
		if u.Email == email {
			c := *u
			found = &c
			break
		}
	}
	s.mu.Unlock()

	if found == nil {
		return User{}, errNotFound
	}
	if err := bcrypt.CompareHashAndPassword(found.PasswordHash, []byte(password)); err != nil {
		return User{}, errNotFound
	}
	return *found, nil
}

func (s *store) user(id uint) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, errNotFound
	}
	return *u, nil
}

func (s *store) listUsers() []User {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, *u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *store) updateUser(id uint, fn func(u *User)) (User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return User{}, errNotFound
	}
	fn(u)
	u.UpdatedAt = time.Now().UTC()
	return *u, nil
}

func (s *store) listPets(visible func(ownerID uint) bool) []Pet {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Pet, 0, len(s.pets))
	for _, p := range s.pets {
		if visible(p.OwnerID) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *store) pet(id uint) (Pet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pets[id]
	if !ok {
		return Pet{}, errNotFound
	}
	return *p, nil
}

func (s *store) putPet(p Pet) Pet {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.pets[p.ID]; ok && p.ID != 0 {
		p.OwnerID = existing.OwnerID
		p.CreatedAt = existing.CreatedAt
	} else {
		p.ID = s.id()
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.pets[p.ID] = &p
	return p
}

func (s *store) deletePet(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.pets[id]; !ok {
		return errNotFound
	}
	delete(s.pets, id)
	return nil
}

func (s *store) buyPet(id, buyer uint) (Pet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.pets[id]
	if !ok {
		return Pet{}, errNotFound
	}
	if p.OwnerID != 0 {
		return Pet{}, errAlreadyOwned
	}
	p.OwnerID = buyer
	p.UpdatedAt = time.Now().UTC()
	return *p, nil
}

func (s *store) listProducts(visible func(ownerID uint) bool) []Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Product, 0, len(s.products))
	for _, p := range s.products {
		if visible(p.OwnerID) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *store) product(id uint) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return Product{}, errNotFound
	}
	return *p, nil
}

func (s *store) putProduct(p Product) Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	if existing, ok := s.products[p.ID]; ok && p.ID != 0 {
		p.OwnerID = existing.OwnerID
		p.CreatedAt = existing.CreatedAt
	} else {
		p.ID = s.id()
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	s.products[p.ID] = &p
	return p
}

func (s *store) deleteProduct(id uint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return errNotFound
	}
	delete(s.products, id)
	return nil
}

// buyProduct takes one unit out of store stock and hands it to buyer
func (s *store) buyProduct(id, buyer uint) (Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.products[id]
	if !ok {
		return Product{}, errNotFound
	}
	if p.OwnerID != 0 || p.Stock <= 0 {
		return Product{}, errAlreadyOwned
	}
	p.OwnerID = buyer
	p.UpdatedAt = time.Now().UTC()
	return *p, nil
}

type stats struct {
	Users         int64 `json:"users"`
	TotalPets     int64 `json:"totalPets"`
	OwnedPets     int64 `json:"ownedPets"`
	StorePets     int64 `json:"storePets"`
	TotalProducts int64 `json:"totalProducts"`
	OwnedProducts int64 `json:"ownedProducts"`
	StoreProducts int64 `json:"storeProducts"`
}

func (s *store) stats() stats {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := stats{
		Users:         int64(len(s.users)),
		TotalPets:     int64(len(s.pets)),
		TotalProducts: int64(len(s.products)),
	}
	for _, p := range s.pets {
		if p.OwnerID == 0 {
			st.StorePets++
		} else {
			st.OwnedPets++
		}
	}
	for _, p := range s.products {
		if p.OwnerID == 0 {
			st.StoreProducts++
		} else {
			st.OwnedProducts++
		}
	}
	return st
}
