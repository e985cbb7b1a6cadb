package client

import (
	"context"
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petshop-dev/petshop/internal/fakeapi"
	"github.com/petshop-dev/petshop/internal/session"
	"github.com/petshop-dev/petshop/internal/storage"
)

type backendEnv struct {
	backend   *fakeapi.Server
	client    *Client
	session   *session.Store
	navigator *redirectRecorder
	sleeps    []time.Duration
}

func newBackendEnv(t *testing.T) *backendEnv {
	t.Helper()

	backend := fakeapi.New(fakeapi.Options{Logger: zerolog.Nop()})
	ts := httptest.NewServer(backend.Handler())
	t.Cleanup(ts.Close)

	sess := session.New(storage.NewMemory(), zerolog.Nop())
	require.NoError(t, sess.Rehydrate())

	env := &backendEnv{backend: backend, session: sess, navigator: &redirectRecorder{}}

	c, err := New(ts.URL+"/api", sess, WithNavigator(env.navigator))
	require.NoError(t, err)
	c.sleep = func(ctx context.Context, d time.Duration) error {
		env.sleeps = append(env.sleeps, d)
		return nil
	}
	env.client = c

	return env
}

func (e *backendEnv) seedUser(t *testing.T, email string, role session.Role) {
	t.Helper()
	_, err := e.backend.SeedUser("Test", "User", email, "secret1", string(role))
	require.NoError(t, err)
}

func (e *backendEnv) login(t *testing.T, email string) {
	t.Helper()
	auth, err := e.client.Login(context.Background(), email, "secret1")
	require.NoError(t, err)
	require.NoError(t, e.session.Login(auth.Token, auth.User))
}

func TestBackend_LoginAndBuy(t *testing.T) {
	env := newBackendEnv(t)
	ctx := context.Background()
	env.seedUser(t, "bob@example.com", session.RoleUser)
	pet := env.backend.SeedPet(fakeapi.Pet{Name: "Rex", Price: 100, Breed: "Beagle", Gender: "male"})

	env.login(t, "bob@example.com")
	assert.Equal(t, session.StateAuthenticated, env.session.State())

	claims, err := env.session.Claims()
	require.NoError(t, err)
	assert.Equal(t, session.RoleUser, claims.Role)

	bought, err := env.client.BuyPet(ctx, pet.ID)
	require.NoError(t, err)
	assert.False(t, bought.InStore())
	assert.Equal(t, 1, env.backend.CSRFTokensIssued())
	assert.NotEmpty(t, env.session.CSRFToken())

	mine, err := env.client.MyPets(ctx)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, "Rex", mine[0].Name)

	_, err = env.client.BuyPet(ctx, pet.ID)
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, 409, apiErr.Status)
	assert.Equal(t, "Pet is not available", apiErr.Message)

	// the cached token is reused
	assert.Equal(t, 1, env.backend.CSRFTokensIssued())
}

func TestBackend_RegisterThenProfileUpdate(t *testing.T) {
	env := newBackendEnv(t)
	ctx := context.Background()

	auth, err := env.client.Register(ctx, RegisterRequest{
		FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Password: "secret1",
	})
	require.NoError(t, err)
	require.NoError(t, env.session.Login(auth.Token, auth.User))
	assert.Equal(t, "Ada Lovelace", env.session.User().FullName())

	user, err := env.client.UpdateProfile(ctx, ProfileUpdate{FirstName: "Augusta"})
	require.NoError(t, err)
	assert.Equal(t, "Augusta", user.FirstName)
	assert.Equal(t, "Lovelace", user.LastName)
}

func TestBackend_CSRFRejectionRecovers(t *testing.T) {
	env := newBackendEnv(t)
	ctx := context.Background()
	env.seedUser(t, "bob@example.com", session.RoleUser)
	first := env.backend.SeedPet(fakeapi.Pet{Name: "Rex", Price: 100, Breed: "Beagle", Gender: "male"})
	second := env.backend.SeedPet(fakeapi.Pet{Name: "Tom", Price: 50, Breed: "Siamese", Gender: "male"})

	env.login(t, "bob@example.com")
	_, err := env.client.BuyPet(ctx, first.ID)
	require.NoError(t, err)

	env.backend.InvalidateCSRF()
	env.backend.ResetRequests()

	_, err = env.client.BuyPet(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"POST /api/pets/3/buy",
		"GET /api/csrf-token",
		"POST /api/pets/3/buy",
	}, env.backend.Requests())
	assert.Equal(t, 2, env.backend.CSRFTokensIssued())
}

func TestBackend_RevokedTokenEndsSession(t *testing.T) {
	env := newBackendEnv(t)
	ctx := context.Background()
	env.seedUser(t, "bob@example.com", session.RoleUser)
	env.login(t, "bob@example.com")

	env.backend.RevokeTokens()

	_, err := env.client.MyPets(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrUnauthenticated))
	assert.Equal(t, session.StateAnonymous, env.session.State())
	assert.Empty(t, env.session.Token())
	assert.Equal(t, 1, env.navigator.Count())
}

func TestBackend_RateLimitRetriedOnce(t *testing.T) {
	env := newBackendEnv(t)
	ctx := context.Background()

	env.backend.RateLimitNext(1)
	_, err := env.client.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{DefaultRateLimitDelay}, env.sleeps)

	env.backend.RateLimitNext(2)
	_, err = env.client.Stats(ctx)
	assert.True(t, errors.Is(err, ErrRateLimited))
}

func TestBackend_ManagerInventory(t *testing.T) {
	env := newBackendEnv(t)
	ctx := context.Background()
	env.seedUser(t, "mia@example.com", session.RoleManager)
	env.login(t, "mia@example.com")

	product, err := env.client.CreateProduct(ctx, ProductInput{Name: "Kibble", Price: 12.5, Stock: 3, Category: "food"})
	require.NoError(t, err)
	assert.True(t, product.InStore())

	input := product.Input()
	input.Price = 15
	updated, err := env.client.UpdateProduct(ctx, product.ID, input)
	require.NoError(t, err)
	assert.Equal(t, 15.0, updated.Price)

	got, err := env.client.GetProduct(ctx, product.ID)
	require.NoError(t, err)
	assert.Equal(t, "Kibble", got.Name)

	require.NoError(t, env.client.DeleteProduct(ctx, product.ID))
	_, err = env.client.GetProduct(ctx, product.ID)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = env.client.CreatePet(ctx, PetInput{Name: "Rex", Price: 10, Breed: "B", Gender: "male"})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestBackend_AdminUsers(t *testing.T) {
	env := newBackendEnv(t)
	ctx := context.Background()
	env.seedUser(t, "ann@example.com", session.RoleAdmin)
	env.seedUser(t, "bob@example.com", session.RoleUser)
	env.login(t, "ann@example.com")

	users, err := env.client.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	bob := users[1]

	changed, err := env.client.ChangeRole(ctx, bob.ID, RoleChange{Role: session.RoleManager})
	require.NoError(t, err)
	assert.Equal(t, session.RoleManager, changed.Role)

	blocked, err := env.client.BlockUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.True(t, blocked.Blocked)

	unblocked, err := env.client.UnblockUser(ctx, bob.ID)
	require.NoError(t, err)
	assert.False(t, unblocked.Blocked)
}

func TestBackend_CustomerCannotReachAdmin(t *testing.T) {
	env := newBackendEnv(t)
	env.seedUser(t, "bob@example.com", session.RoleUser)
	env.login(t, "bob@example.com")

	_, err := env.client.ListUsers(context.Background())
	assert.True(t, errors.Is(err, ErrForbidden))
	assert.False(t, errors.Is(err, ErrCSRFRejected))
	assert.Equal(t, session.StateAuthenticated, env.session.State(), "a 403 never ends the session")
}

func TestBackend_Health(t *testing.T) {
	env := newBackendEnv(t)

	health, err := env.client.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
}
