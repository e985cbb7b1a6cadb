package session

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petshop-dev/petshop/internal/storage"
)

func newTestStore(t *testing.T) (*Store, *storage.Memory) {
	t.Helper()
	mem := storage.NewMemory()
	return New(mem, zerolog.Nop()), mem
}

func customer() UserSummary {
	return UserSummary{ID: 7, FirstName: "Ada", LastName: "Lovelace", Email: "ada@example.com", Role: RoleUser}
}

func TestStore_InitialStateUnknown(t *testing.T) {
	store, _ := newTestStore(t)

	assert.Equal(t, StateUnknown, store.State())
	assert.False(t, store.IsAuthenticated())
	assert.Nil(t, store.User())
	assert.Empty(t, store.Token())
}

func TestStore_LoginPersists(t *testing.T) {
	store, mem := newTestStore(t)
	require.NoError(t, store.Rehydrate())
	require.Equal(t, StateAnonymous, store.State())

	require.NoError(t, store.Login("T1", customer()))

	assert.Equal(t, StateAuthenticated, store.State())
	assert.True(t, store.IsAuthenticated())
	assert.Equal(t, "T1", store.Token())
	assert.Equal(t, uint(7), store.User().ID)

	token, err := mem.Get(storage.KeyToken)
	require.NoError(t, err)
	assert.Equal(t, "T1", token)

	userJSON, err := mem.Get(storage.KeyUser)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":7,"firstName":"Ada","lastName":"Lovelace","email":"ada@example.com","role":"user","blocked":false}`, userJSON)

	record, err := mem.Get(storage.KeyAuthStorage)
	require.NoError(t, err)
	assert.Contains(t, record, `"isAuthenticated":true`)
}

func TestStore_LoginThenLogoutClearsEverything(t *testing.T) {
	store, mem := newTestStore(t)
	require.NoError(t, store.Rehydrate())

	require.NoError(t, store.Login("T1", UserSummary{ID: 7, Role: RoleUser}))
	require.NoError(t, store.SetCSRFToken("X"))

	require.NoError(t, store.Logout())

	assert.Equal(t, StateAnonymous, store.State())
	assert.Empty(t, store.Token())
	assert.Nil(t, store.User())
	assert.Empty(t, store.CSRFToken())
	assert.Equal(t, 0, mem.Len())

	// A fresh store over the same storage comes up anonymous
	fresh := New(mem, zerolog.Nop())
	require.NoError(t, fresh.Rehydrate())
	assert.Equal(t, StateAnonymous, fresh.State())
}

func TestStore_LogoutIsIdempotent(t *testing.T) {
	store, mem := newTestStore(t)

	require.NoError(t, store.Logout())
	require.NoError(t, store.Logout())

	assert.Equal(t, StateAnonymous, store.State())
	assert.Equal(t, 0, mem.Len())
}

func TestStore_Rehydrate(t *testing.T) {
	validUser := `{"id":7,"role":"user","email":"ada@example.com"}`

	tests := []struct {
		name          string
		entries       map[string]string
		expectedState State
		expectCleared bool
	}{
		{
			name:          "empty storage",
			entries:       map[string]string{},
			expectedState: StateAnonymous,
		},
		{
			name:          "token and valid user",
			entries:       map[string]string{storage.KeyToken: "T1", storage.KeyUser: validUser},
			expectedState: StateAuthenticated,
		},
		{
			name:          "token with unparseable user",
			entries:       map[string]string{storage.KeyToken: "T1", storage.KeyUser: "{oops"},
			expectedState: StateAnonymous,
			expectCleared: true,
		},
		{
			name:          "token with user of unknown role",
			entries:       map[string]string{storage.KeyToken: "T1", storage.KeyUser: `{"id":7,"role":"root"}`},
			expectedState: StateAnonymous,
			expectCleared: true,
		},
		{
			name:          "token with user missing id",
			entries:       map[string]string{storage.KeyToken: "T1", storage.KeyUser: `{"role":"user"}`},
			expectedState: StateAnonymous,
			expectCleared: true,
		},
		{
			name:          "token without user",
			entries:       map[string]string{storage.KeyToken: "T1", storage.KeyCSRFToken: "X"},
			expectedState: StateAnonymous,
			expectCleared: true,
		},
		{
			name:          "user without token",
			entries:       map[string]string{storage.KeyUser: validUser},
			expectedState: StateAnonymous,
			expectCleared: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, mem := newTestStore(t)
			for k, v := range tt.entries {
				require.NoError(t, mem.Set(k, v))
			}

			require.NoError(t, store.Rehydrate())
			assert.Equal(t, tt.expectedState, store.State())

			// Never authenticated without a user
			if store.IsAuthenticated() {
				assert.NotNil(t, store.User())
				assert.NotEmpty(t, store.Token())
			} else {
				assert.Nil(t, store.User())
				assert.Empty(t, store.Token())
			}

			if tt.expectCleared {
				assert.Equal(t, 0, mem.Len(), "corrupt session should be fully cleared")
				assert.Empty(t, store.CSRFToken())
			}
		})
	}
}

func TestStore_RehydrateIsIdempotent(t *testing.T) {
	store, mem := newTestStore(t)
	require.NoError(t, mem.Set(storage.KeyToken, "T1"))
	require.NoError(t, mem.Set(storage.KeyUser, `{"id":7,"role":"manager"}`))
	require.NoError(t, mem.Set(storage.KeyCSRFToken, "X"))

	require.NoError(t, store.Rehydrate())
	first := store.Snapshot()
	firstCSRF := store.CSRFToken()

	require.NoError(t, store.Rehydrate())
	assert.Equal(t, first, store.Snapshot())
	assert.Equal(t, firstCSRF, store.CSRFToken())
	assert.Equal(t, "X", store.CSRFToken())
	assert.Equal(t, RoleManager, store.User().Role)
}

type failingStorage struct {
	*storage.Memory
	err error
}

func (f failingStorage) Get(string) (string, error) { return "", f.err }
func (f failingStorage) Set(string, string) error   { return f.err }

func TestStore_RehydrateReadFailure(t *testing.T) {
	broken := failingStorage{Memory: storage.NewMemory(), err: errors.New("disk on fire")}
	store := New(broken, zerolog.Nop())

	err := store.Rehydrate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
	assert.Equal(t, StateAnonymous, store.State())
}

func TestStore_CorruptStateFileRecovers(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"token":"T1","user":`), 0600))

	store := New(storage.NewFile(path), zerolog.Nop())
	err := store.Rehydrate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse state file")
	assert.Equal(t, StateAnonymous, store.State())

	fresh := New(storage.NewFile(path), zerolog.Nop())
	require.NoError(t, fresh.Rehydrate())
	assert.Equal(t, StateAnonymous, fresh.State())

	require.NoError(t, fresh.Login("T2", customer()))
	again := New(storage.NewFile(path), zerolog.Nop())
	require.NoError(t, again.Rehydrate())
	assert.Equal(t, "T2", again.Token())
}

func TestStore_LogoutOnCorruptStateFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "default.json")
	store := New(storage.NewFile(path), zerolog.Nop())
	require.NoError(t, store.Rehydrate())
	require.NoError(t, store.Login("T1", customer()))

	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0600))

	require.NoError(t, store.Logout())
	fresh := New(storage.NewFile(path), zerolog.Nop())
	require.NoError(t, fresh.Rehydrate())
	assert.Equal(t, StateAnonymous, fresh.State())
}

func TestStore_CSRFCookiePersistsUntilLogout(t *testing.T) {
	store, mem := newTestStore(t)
	require.NoError(t, store.Rehydrate())
	require.NoError(t, store.Login("T1", customer()))
	require.NoError(t, store.SetCSRFToken("X"))
	require.NoError(t, store.SetCSRFCookie(`{"value":"X"}`))

	fresh := New(mem, zerolog.Nop())
	require.NoError(t, fresh.Rehydrate())
	assert.Equal(t, "X", fresh.CSRFToken())
	assert.Equal(t, `{"value":"X"}`, fresh.CSRFCookie())

	require.NoError(t, fresh.Logout())
	assert.Empty(t, fresh.CSRFCookie())
	assert.Equal(t, 0, mem.Len())
}

func TestStore_LoginStorageFailureKeepsMemory(t *testing.T) {
	broken := failingStorage{Memory: storage.NewMemory(), err: errors.New("read-only")}
	store := New(broken, zerolog.Nop())

	err := store.Login("T1", customer())
	require.Error(t, err)
	assert.True(t, store.IsAuthenticated())
	assert.Equal(t, "T1", store.Token())
}

func TestStore_UserReturnsCopy(t *testing.T) {
	store, _ := newTestStore(t)
	require.NoError(t, store.Login("T1", customer()))

	user := store.User()
	user.Role = RoleAdmin

	assert.Equal(t, RoleUser, store.User().Role)
}

func TestStore_RequireUser(t *testing.T) {
	store, _ := newTestStore(t)

	_, err := store.RequireUser()
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	require.NoError(t, store.Login("T1", customer()))
	user, err := store.RequireUser()
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", user.FullName())
}

func TestParseClaims(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 7,
		"role":    "manager",
		"exp":     exp.Unix(),
	}).SignedString([]byte("any-secret"))
	require.NoError(t, err)

	claims, err := ParseClaims(token)
	require.NoError(t, err)
	assert.Equal(t, uint(7), claims.UserID)
	assert.Equal(t, RoleManager, claims.Role)
	assert.True(t, claims.ExpiresAt.Equal(exp))
	assert.False(t, claims.Expired(time.Now()))
	assert.True(t, claims.Expired(exp.Add(time.Minute)))

	_, err = ParseClaims("not-a-jwt")
	assert.Error(t, err)
}
