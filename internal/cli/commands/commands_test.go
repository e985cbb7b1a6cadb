package commands

import (
	"bytes"
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petshop-dev/petshop/internal/cli/client"
	projectconfig "github.com/petshop-dev/petshop/internal/cli/config"
	"github.com/petshop-dev/petshop/internal/cli/userconfig"
	"github.com/petshop-dev/petshop/internal/config"
	"github.com/petshop-dev/petshop/internal/fakeapi"
	"github.com/petshop-dev/petshop/internal/session"
	"github.com/petshop-dev/petshop/internal/storage"
)

// harness runs commands against a fake backend. Storage is shared between
// invocations the way the session file is shared between processes.
type harness struct {
	t         *testing.T
	backend   *fakeapi.Server
	url       string
	store     *storage.Memory
	passwords []string
	role      session.Role
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	backend := fakeapi.New(fakeapi.Options{Logger: zerolog.Nop()})
	ts := httptest.NewServer(backend.Handler())
	t.Cleanup(ts.Close)

	return &harness{t: t, backend: backend, url: ts.URL + "/api", store: storage.NewMemory()}
}

func (h *harness) seed(email string, role session.Role) {
	h.t.Helper()
	_, err := h.backend.SeedUser("Test", "User", email, "secret1", string(role))
	require.NoError(h.t, err)
}

func (h *harness) load(cmd *cobra.Command) (*Env, error) {
	sess := session.New(h.store, zerolog.Nop())
	if err := sess.Rehydrate(); err != nil {
		return nil, err
	}

	env := &Env{
		Log:     zerolog.Nop(),
		Session: sess,
		Profile: "test",
		Out:     cmd.OutOrStdout(),
		Err:     cmd.ErrOrStderr(),
		Prompts: Prompts{
			Password: func(string) (string, error) {
				require.NotEmpty(h.t, h.passwords, "unexpected password prompt")
				p := h.passwords[0]
				h.passwords = h.passwords[1:]
				return p, nil
			},
			Role: func(session.Role) (session.Role, error) {
				return h.role, nil
			},
		},
	}

	c, err := client.New(h.url, sess, client.WithNavigator(env), client.WithRateLimitDelay(time.Millisecond))
	if err != nil {
		return nil, err
	}
	env.Client = c
	return env, nil
}

func (h *harness) root() *cobra.Command {
	root := &cobra.Command{Use: "petshop", SilenceUsage: true, SilenceErrors: true}
	root.AddCommand(
		NewLoginCmd(h.load),
		NewRegisterCmd(h.load),
		NewLogoutCmd(h.load),
		NewWhoamiCmd(h.load),
		NewRefreshCmd(h.load),
		NewPetsCmd(h.load),
		NewProductsCmd(h.load),
		NewMyCmd(h.load),
		NewProfileCmd(h.load),
		NewAdminCmd(h.load),
		NewStatsCmd(h.load),
		NewHealthCmd(h.load),
	)
	return root
}

func (h *harness) run(args ...string) (string, string, error) {
	h.t.Helper()

	var stdout, stderr bytes.Buffer
	root := h.root()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func (h *harness) mustRun(args ...string) string {
	h.t.Helper()
	stdout, stderr, err := h.run(args...)
	require.NoError(h.t, err, "petshop %s\nstderr: %s", strings.Join(args, " "), stderr)
	return stdout
}

func (h *harness) login(email string) {
	h.t.Helper()
	h.mustRun("login", "--email", email, "--password", "secret1")
}

func TestLoginWhoamiLogout(t *testing.T) {
	h := newHarness(t)
	h.seed("bob@example.com", session.RoleUser)

	out := h.mustRun("login", "--email", "bob@example.com", "--password", "secret1")
	assert.Contains(t, out, "✓ Login successful!")
	assert.Contains(t, out, "User: Test User (bob@example.com)")

	out = h.mustRun("whoami")
	assert.Contains(t, out, "bob@example.com")
	assert.Contains(t, out, "Role:     user")
	assert.Contains(t, out, "valid until")

	out = h.mustRun("logout")
	assert.Contains(t, out, "✓ Logged out")

	_, _, err := h.run("whoami")
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)

	out = h.mustRun("logout")
	assert.Contains(t, out, "Not logged in.")
}

func TestLoginPromptsForPassword(t *testing.T) {
	h := newHarness(t)
	h.seed("bob@example.com", session.RoleUser)
	h.passwords = []string{"secret1"}

	out := h.mustRun("login", "--email", "bob@example.com")
	assert.Contains(t, out, "Login successful")
	assert.Empty(t, h.passwords)
}

func TestLoginRequiresEmail(t *testing.T) {
	h := newHarness(t)
	t.Setenv("PETSHOP_EMAIL", "")

	_, _, err := h.run("login")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email is required")
}

func TestLoginBadCredentials(t *testing.T) {
	h := newHarness(t)
	h.seed("bob@example.com", session.RoleUser)

	_, _, err := h.run("login", "--email", "bob@example.com", "--password", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login failed")
	assert.Equal(t, 0, h.store.Len())
}

func TestRegister(t *testing.T) {
	h := newHarness(t)
	h.passwords = []string{"secret1", "secret1"}

	out := h.mustRun("register", "--first-name", "Ada", "--last-name", "Lovelace", "--email", "ada@example.com")
	assert.Contains(t, out, "✓ Account created!")

	out = h.mustRun("whoami")
	assert.Contains(t, out, "Ada Lovelace")
}

func TestRegisterPasswordMismatch(t *testing.T) {
	h := newHarness(t)
	h.passwords = []string{"secret1", "secret2"}

	_, _, err := h.run("register", "--first-name", "Ada", "--last-name", "Lovelace", "--email", "ada@example.com")
	assert.EqualError(t, err, "passwords do not match")
}

func TestBuyAcrossInvocations(t *testing.T) {
	h := newHarness(t)
	h.seed("bob@example.com", session.RoleUser)
	h.backend.SeedPet(fakeapi.Pet{Name: "Rex", Price: 100, Breed: "Beagle", Gender: "male"})
	h.backend.SeedProduct(fakeapi.Product{Name: "Kibble", Price: 12.5, Stock: 3, Category: "food"})
	h.login("bob@example.com")

	out := h.mustRun("pets", "ls")
	assert.Contains(t, out, "Rex")
	assert.Contains(t, out, "store")

	out = h.mustRun("pets", "buy", "2")
	assert.Contains(t, out, "✓ You bought Rex (Beagle) for 100.00")
	assert.Equal(t, 1, h.backend.CSRFTokensIssued())

	// The cached CSRF token and its cookie both survive, so the next
	// process sends them straight away.
	h.backend.ResetRequests()
	out = h.mustRun("products", "buy", "3")
	assert.Contains(t, out, "✓ You bought Kibble")
	assert.Equal(t, 1, h.backend.CSRFTokensIssued())
	assert.Equal(t, []string{"POST /api/products/3/buy"}, h.backend.Requests())

	out = h.mustRun("my", "pets")
	assert.Contains(t, out, "Rex")
	out = h.mustRun("my", "products")
	assert.Contains(t, out, "Kibble")

	out = h.mustRun("pets", "ls", "--owner", "0")
	assert.Contains(t, out, "No pets found.")
}

func TestBuyRequiresLogin(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("pets", "buy", "1")
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	assert.Empty(t, h.backend.Requests())
}

func TestSessionExpiryPrintsLoginHint(t *testing.T) {
	h := newHarness(t)
	h.seed("bob@example.com", session.RoleUser)
	h.login("bob@example.com")

	h.backend.RevokeTokens()

	_, stderr, err := h.run("my", "pets")
	assert.ErrorIs(t, err, client.ErrUnauthenticated)
	assert.Contains(t, stderr, "Session expired. Please login again.")
	assert.Contains(t, stderr, loginHint)

	_, _, err = h.run("whoami")
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)
	assert.Equal(t, 0, h.store.Len())
}

func TestManagerInventory(t *testing.T) {
	h := newHarness(t)
	h.seed("mia@example.com", session.RoleManager)
	h.login("mia@example.com")

	out := h.mustRun("pets", "create", "--name", "Rex", "--price", "100", "--breed", "Beagle", "--gender", "male", "--age", "2")
	assert.Contains(t, out, "✓ Created pet 2 (Rex)")

	h.mustRun("pets", "update", "2", "--price", "120")
	pet, ok := h.backend.Pet(2)
	require.True(t, ok)
	assert.Equal(t, 120.0, pet.Price)
	assert.Equal(t, "Beagle", pet.Breed, "fields not given on the command line are kept")
	assert.Equal(t, 2, pet.Age)

	out = h.mustRun("pets", "show", "2")
	assert.Contains(t, out, "Price:       120.00")

	out = h.mustRun("products", "create", "--name", "Kibble", "--price", "12.5", "--category", "food", "--stock", "4")
	assert.Contains(t, out, "✓ Created product 3 (Kibble)")

	out = h.mustRun("products", "update", "3", "--brand", "Acme")
	assert.Contains(t, out, "✓ Updated product 3 (Kibble)")

	h.mustRun("pets", "delete", "2")
	_, ok = h.backend.Pet(2)
	assert.False(t, ok)
}

func TestCustomerGetsRoleHint(t *testing.T) {
	h := newHarness(t)
	h.seed("bob@example.com", session.RoleUser)
	h.login("bob@example.com")

	_, stderr, err := h.run("pets", "create", "--name", "Rex", "--price", "100", "--breed", "Beagle", "--gender", "male")
	assert.ErrorIs(t, err, client.ErrForbidden)
	assert.Contains(t, stderr, "Hint: your role (user) is not allowed to create pets")

	_, _, err = h.run("whoami")
	assert.NoError(t, err, "a 403 leaves the session alone")
}

func TestAdminUsers(t *testing.T) {
	h := newHarness(t)
	h.seed("ann@example.com", session.RoleAdmin)
	h.seed("bob@example.com", session.RoleUser)
	h.login("ann@example.com")

	out := h.mustRun("admin", "users", "ls")
	assert.Contains(t, out, "ann@example.com")
	assert.Contains(t, out, "bob@example.com")

	out = h.mustRun("admin", "users", "role", "2", "manager")
	assert.Contains(t, out, "is now manager")

	h.role = session.RoleAdmin
	out = h.mustRun("admin", "users", "role", "2")
	assert.Contains(t, out, "is now admin")

	_, _, err := h.run("admin", "users", "role", "2", "owner")
	assert.Error(t, err)

	out = h.mustRun("admin", "users", "block", "2")
	assert.Contains(t, out, "✓ Blocked")

	out = h.mustRun("admin", "users", "show", "2")
	assert.Contains(t, out, "Blocked:  yes")

	out = h.mustRun("admin", "users", "unblock", "2")
	assert.Contains(t, out, "✓ Unblocked")
}

func TestAdminUpdatesUser(t *testing.T) {
	h := newHarness(t)
	h.seed("ann@example.com", session.RoleAdmin)
	h.seed("bob@example.com", session.RoleUser)
	h.login("ann@example.com")

	_, _, err := h.run("admin", "users", "update", "2")
	assert.ErrorContains(t, err, "nothing to update")

	out := h.mustRun("admin", "users", "update", "2", "--first-name", "Robert")
	assert.Contains(t, out, "✓ Updated Robert User")
	assert.Contains(t, out, "bob@example.com", "fields not given on the command line are kept")

	out = h.mustRun("admin", "users", "show", "2")
	assert.Contains(t, out, "Robert User")
	assert.Contains(t, h.backend.Requests(), "PUT /api/admin/users/2")
}

func TestRefreshRenewsSession(t *testing.T) {
	h := newHarness(t)

	_, _, err := h.run("refresh")
	assert.ErrorIs(t, err, session.ErrNotAuthenticated)

	h.seed("bob@example.com", session.RoleUser)
	h.login("bob@example.com")

	out := h.mustRun("refresh")
	assert.Contains(t, out, "✓ Session refreshed")
	assert.Contains(t, out, "Valid until")
	assert.Contains(t, h.backend.Requests(), "POST /api/refresh")

	out = h.mustRun("whoami")
	assert.Contains(t, out, "bob@example.com")

	h.backend.RevokeTokens()
	_, stderr, err := h.run("refresh")
	assert.ErrorIs(t, err, client.ErrUnauthenticated)
	assert.Contains(t, stderr, loginHint)
	assert.Equal(t, 0, h.store.Len())
}

func TestProfileUpdateRefreshesCachedUser(t *testing.T) {
	h := newHarness(t)
	h.seed("bob@example.com", session.RoleUser)
	h.login("bob@example.com")

	_, _, err := h.run("profile", "update")
	assert.Error(t, err)

	h.mustRun("profile", "update", "--first-name", "Robert")

	out := h.mustRun("whoami")
	assert.Contains(t, out, "Robert User")
}

func TestStatsAndHealth(t *testing.T) {
	h := newHarness(t)
	h.backend.SeedPet(fakeapi.Pet{Name: "Rex", Price: 100, Breed: "Beagle", Gender: "male"})

	out := h.mustRun("stats")
	assert.Contains(t, out, "Pets")

	out = h.mustRun("health")
	assert.Contains(t, out, "is ok")
}

func TestStatsRetriesAfterRateLimit(t *testing.T) {
	h := newHarness(t)
	h.backend.RateLimitNext(1)

	h.mustRun("stats")
	assert.Equal(t, []string{"GET /api/stats", "GET /api/stats"}, h.backend.Requests())
}

func TestOwnerFilter(t *testing.T) {
	tests := []struct {
		name    string
		mine    bool
		owner   string
		want    string
		wantErr bool
	}{
		{name: "everything", want: ""},
		{name: "mine", mine: true, want: "me"},
		{name: "store", owner: "0", want: "0"},
		{name: "user", owner: "7", want: "7"},
		{name: "not a number", owner: "bob", wantErr: true},
		{name: "both", mine: true, owner: "7", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ownerFilter(tt.mine, tt.owner)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Owner)
		})
	}
}

func TestInitAndUse(t *testing.T) {
	project := t.TempDir()
	stateDir := t.TempDir()
	t.Chdir(project)

	run := func(cmd *cobra.Command, args ...string) string {
		var out bytes.Buffer
		cmd.SetOut(&out)
		cmd.SetErr(&out)
		cmd.SetArgs(args)
		require.NoError(t, cmd.Execute())
		return out.String()
	}

	out := run(NewInitCmd())
	assert.Contains(t, out, "✓ Created ./petshop.yaml with profile local (http://localhost:8080/api)")

	out = run(NewInitCmd(), "https://staging.example/api", "--name", "staging")
	assert.Contains(t, out, "✓ Added profile staging")

	cfg, err := projectconfig.Load(filepath.Join(project, projectconfig.ConfigFileName))
	require.NoError(t, err)
	assert.Len(t, cfg.Profiles, 2)

	dirFn := func() (string, error) { return stateDir, nil }

	out = run(NewUseCmd(dirFn), "staging")
	assert.Contains(t, out, "✓ Using profile staging")
	selected, err := userconfig.GetSelectedProfile(stateDir)
	require.NoError(t, err)
	assert.Equal(t, "staging", selected)

	pickFirst := func(cfg *projectconfig.Config) (*projectconfig.Profile, error) {
		return &cfg.Profiles[0], nil
	}
	run(newUseCmd(dirFn, pickFirst))
	selected, err = userconfig.GetSelectedProfile(stateDir)
	require.NoError(t, err)
	assert.Equal(t, "local", selected)
}

func TestUseWithoutProjectFile(t *testing.T) {
	t.Chdir(t.TempDir())

	cmd := NewUseCmd(func() (string, error) { return t.TempDir(), nil })
	cmd.SetArgs([]string{"local"})
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "petshop init")
}

func TestResolveTarget(t *testing.T) {
	t.Chdir(t.TempDir())
	stateDir := t.TempDir()

	cfg := testConfig(stateDir)

	url, profile, err := resolveTarget(cfg, &GlobalFlags{}, os.Stderr)
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8080/api", url)
	assert.Equal(t, "default", profile)

	url, profile, err = resolveTarget(cfg, &GlobalFlags{APIURL: "http://api.test/api", Profile: "ci"}, os.Stderr)
	require.NoError(t, err)
	assert.Equal(t, "http://api.test/api", url)
	assert.Equal(t, "ci", profile)

	require.NoError(t, projectconfig.Save(projectconfig.ConfigFileName, &projectconfig.Config{Profiles: []projectconfig.Profile{
		{Name: "staging", APIURL: "https://staging.example/api"},
	}}))

	url, profile, err = resolveTarget(cfg, &GlobalFlags{}, os.Stderr)
	require.NoError(t, err)
	assert.Equal(t, "https://staging.example/api", url)
	assert.Equal(t, "staging", profile, "the session is namespaced by the project profile")
}

func testConfig(stateDir string) *config.Config {
	return &config.Config{
		API:     config.APIConfig{Timeout: time.Second, RateLimitDelay: time.Millisecond},
		Storage: config.StorageConfig{Kind: "memory", Dir: stateDir},
		Logging: config.LoggingConfig{Level: "off", Format: "console"},
	}
}
