package gateway_test

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"keygate/internal/config"
	"keygate/internal/gateway"
)

// fakeAdminAPI is an in-memory gateway admin API that records calls.
type fakeAdminAPI struct {
	mu       sync.Mutex
	accounts map[string]string // accountID -> email
	gets     int
	creates  int
	issues   int

	getErr    error
	createErr error
	issueErr  error
}

func newFakeAdminAPI() *fakeAdminAPI {
	return &fakeAdminAPI{accounts: make(map[string]string)}
}

func (f *fakeAdminAPI) GetAccount(_ context.Context, accountID string) (*gateway.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return nil, f.getErr
	}
	email, ok := f.accounts[accountID]
	if !ok {
		return nil, gateway.ErrAccountNotFound
	}
	return &gateway.Account{ID: accountID, Email: email}, nil
}

func (f *fakeAdminAPI) CreateAccount(_ context.Context, accountID, email string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if f.createErr != nil {
		return f.createErr
	}
	f.accounts[accountID] = email
	return nil
}

func (f *fakeAdminAPI) IssueKey(_ context.Context, accountID string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issues++
	if f.issueErr != nil {
		return "", f.issueErr
	}
	return fmt.Sprintf("sk-%s-%d", accountID, f.issues), nil
}

func (f *fakeAdminAPI) counts() (gets, creates, issues int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.gets, f.creates, f.issues
}

func newResolver(t *testing.T, api gateway.AdminAPI) *gateway.Resolver {
	t.Helper()
	resolver, err := gateway.NewResolver(api, config.NewRuntime(&config.Config{}))
	require.NoError(t, err)
	t.Cleanup(resolver.Close)
	return resolver
}

func TestAccountIDDeterministic(t *testing.T) {
	t.Parallel()

	id := gateway.AccountID("kg-", "dev@example.com")
	assert.Equal(t, id, gateway.AccountID("kg-", "dev@example.com"))
	assert.Equal(t, id, gateway.AccountID("kg-", "DEV@Example.COM"))
	assert.Equal(t, id, gateway.AccountID("kg-", "  dev@example.com  "))

	assert.True(t, strings.HasPrefix(id, "kg-"))
	suffix := strings.TrimPrefix(id, "kg-")
	assert.Len(t, suffix, 12)
	_, err := hex.DecodeString(suffix)
	assert.NoError(t, err)

	assert.NotEqual(t, id, gateway.AccountID("kg-", "other@example.com"))
	assert.NotEqual(t, id, gateway.AccountID("acct-", "dev@example.com"))
}

func TestAccountIDProperties(t *testing.T) {
	t.Parallel()

	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("case and whitespace insensitive", prop.ForAll(
		func(local, domain string) bool {
			email := local + "@" + domain + ".com"
			messy := "  " + strings.ToUpper(email) + " "
			return gateway.AccountID("kg-", email) == gateway.AccountID("kg-", messy)
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.Property("distinct normalized emails yield distinct ids", prop.ForAll(
		func(a, b string) bool {
			emailA := a + "@example.com"
			emailB := b + "@example.com"
			if strings.EqualFold(emailA, emailB) {
				return true
			}
			return gateway.AccountID("kg-", emailA) != gateway.AccountID("kg-", emailB)
		},
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
		gen.AlphaString().SuchThat(func(s string) bool { return s != "" }),
	))

	properties.TestingRun(t)
}

func TestEnsureAccountExisting(t *testing.T) {
	t.Parallel()

	api := newFakeAdminAPI()
	resolver := newResolver(t, api)

	id := resolver.AccountIDFor("dev@example.com")
	api.accounts[id] = "dev@example.com"

	got, err := resolver.EnsureAccount(t.Context(), "dev@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	_, creates, _ := api.counts()
	assert.Zero(t, creates, "existing account must not be re-created")
}

func TestEnsureAccountCreatesOnFirstContact(t *testing.T) {
	t.Parallel()

	api := newFakeAdminAPI()
	resolver := newResolver(t, api)

	id, err := resolver.EnsureAccount(t.Context(), "new@example.com")
	require.NoError(t, err)
	assert.Equal(t, resolver.AccountIDFor("new@example.com"), id)

	gets, creates, _ := api.counts()
	assert.Equal(t, 1, creates)
	assert.Equal(t, 2, gets, "creation is verified with a re-fetch")
	assert.Equal(t, "new@example.com", api.accounts[id])
}

func TestEnsureAccountCreationConflict(t *testing.T) {
	t.Parallel()

	api := newFakeAdminAPI()
	api.createErr = &gateway.APIError{StatusCode: http.StatusConflict, Body: "already exists"}
	resolver := newResolver(t, api)

	// Simulate another instance winning the race: account exists by the
	// time the conflict response arrives.
	id := resolver.AccountIDFor("race@example.com")
	api.accounts[id] = "race@example.com"

	got, err := resolver.EnsureAccount(t.Context(), "race@example.com")
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestEnsureAccountTransportErrorPropagates(t *testing.T) {
	t.Parallel()

	api := newFakeAdminAPI()
	api.getErr = errors.New("connection refused")
	resolver := newResolver(t, api)

	_, err := resolver.EnsureAccount(t.Context(), "dev@example.com")
	require.Error(t, err)

	_, creates, _ := api.counts()
	assert.Zero(t, creates, "transport errors must not trigger account creation")
}

func TestEnsureAccountCreateErrorPropagates(t *testing.T) {
	t.Parallel()

	api := newFakeAdminAPI()
	api.createErr = &gateway.APIError{StatusCode: http.StatusInternalServerError, Body: "boom"}
	resolver := newResolver(t, api)

	_, err := resolver.EnsureAccount(t.Context(), "dev@example.com")
	var apiErr *gateway.APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
}

func TestEnsureAccountExistenceCache(t *testing.T) {
	t.Parallel()

	api := newFakeAdminAPI()
	resolver := newResolver(t, api)

	_, err := resolver.EnsureAccount(t.Context(), "cached@example.com")
	require.NoError(t, err)
	resolver.WaitCache()

	getsBefore, _, _ := api.counts()
	_, err = resolver.EnsureAccount(t.Context(), "cached@example.com")
	require.NoError(t, err)

	getsAfter, _, _ := api.counts()
	assert.Equal(t, getsBefore, getsAfter, "cached existence must skip gateway lookups")
}

func TestAccountExists(t *testing.T) {
	t.Parallel()

	api := newFakeAdminAPI()
	resolver := newResolver(t, api)

	exists, err := resolver.AccountExists(t.Context(), "nobody@example.com")
	require.NoError(t, err)
	assert.False(t, exists)

	id := resolver.AccountIDFor("dev@example.com")
	api.accounts[id] = "dev@example.com"

	exists, err = resolver.AccountExists(t.Context(), "dev@example.com")
	require.NoError(t, err)
	assert.True(t, exists)

	_, creates, _ := api.counts()
	assert.Zero(t, creates, "existence checks must never create accounts")
}

func TestAccountExistsTransportError(t *testing.T) {
	t.Parallel()

	api := newFakeAdminAPI()
	api.getErr = errors.New("connection refused")
	resolver := newResolver(t, api)

	_, err := resolver.AccountExists(t.Context(), "dev@example.com")
	require.Error(t, err)
}

func TestResolveAndIssueFreshKeyPerCall(t *testing.T) {
	t.Parallel()

	api := newFakeAdminAPI()
	resolver := newResolver(t, api)

	first, err := resolver.ResolveAndIssue(t.Context(), "dev@example.com")
	require.NoError(t, err)
	second, err := resolver.ResolveAndIssue(t.Context(), "dev@example.com")
	require.NoError(t, err)

	assert.Equal(t, first.AccountID, second.AccountID)
	assert.NotEqual(t, first.Key, second.Key, "every resolution issues a fresh key")
	assert.NotEmpty(t, first.Key)
}

func TestResolveAndIssueKeyFailure(t *testing.T) {
	t.Parallel()

	api := newFakeAdminAPI()
	api.issueErr = errors.New("key issuance failed")
	resolver := newResolver(t, api)

	_, err := resolver.ResolveAndIssue(t.Context(), "dev@example.com")
	require.Error(t, err)
}

func TestNormalizeEmail(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want string
	}{
		{in: "Dev@Example.COM", want: "dev@example.com"},
		{in: "  spaced@example.com ", want: "spaced@example.com"},
		{in: "plain@example.com", want: "plain@example.com"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, gateway.NormalizeEmail(tt.in))
	}
}
