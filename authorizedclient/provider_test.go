package authorizedclient_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jrsteele09/go-obo-blueprints/authorizedclient"
	"github.com/jrsteele09/go-obo-blueprints/clients"
	"github.com/jrsteele09/go-obo-blueprints/internal/metrics"
	"github.com/jrsteele09/go-obo-blueprints/oauth2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	oboRegistrationID = "aad-obo"
	downstreamScope   = "api://downstream/.default"
)

// testClock is a controllable clock
type testClock struct {
	mu      sync.RWMutex
	current time.Time
}

func newTestClock() *testClock {
	return &testClock{current: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current
}

func (c *testClock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current = t
}

// fakeExchanger issues "token-<n>" tokens valid for lifetime
type fakeExchanger struct {
	clock      *testClock
	lifetime   time.Duration
	calls      atomic.Int32
	err        error
	assertions chan string
	release    chan struct{}
}

func (f *fakeExchanger) Exchange(ctx context.Context, reg *clients.Registration, assertion string) (*oauth2.AccessToken, error) {
	n := f.calls.Add(1)
	if f.assertions != nil {
		f.assertions <- assertion
	}
	if f.release != nil {
		<-f.release
	}
	if f.err != nil {
		return nil, f.err
	}
	return &oauth2.AccessToken{
		Value:     "token-" + strconv.Itoa(int(n)),
		Type:      "bearer",
		ExpiresAt: f.clock.Now().Add(f.lifetime),
		Scopes:    reg.Scopes,
	}, nil
}

type testFixture struct {
	clock     *testClock
	exchanger *fakeExchanger
	store     *authorizedclient.MemoryStore
	registry  *clients.Registry
	metrics   *metrics.Metrics
	provider  *authorizedclient.Provider
}

func oboRegistration() *clients.Registration {
	return &clients.Registration{
		ID:           oboRegistrationID,
		TokenURI:     "http://localhost/oauth2/v2.0/token",
		ClientID:     "middle-tier",
		ClientSecret: "secret",
		AuthMethod:   oauth2.AuthMethodBasic,
		GrantType:    oauth2.JWTBearerGrant,
		Scopes:       []string{downstreamScope},
	}
}

func setupTestFixture(t *testing.T, regs ...*clients.Registration) *testFixture {
	t.Helper()

	clock := newTestClock()
	registry, err := clients.NewRegistry(append([]*clients.Registration{oboRegistration()}, regs...)...)
	require.NoError(t, err)

	f := &testFixture{
		clock:     clock,
		exchanger: &fakeExchanger{clock: clock, lifetime: time.Hour},
		store:     authorizedclient.NewMemoryStore(),
		registry:  registry,
		metrics:   metrics.New(prometheus.NewRegistry()),
	}
	f.provider, err = authorizedclient.NewProvider(registry,
		authorizedclient.WithNowTime(clock.Now),
		authorizedclient.WithExchanger(f.exchanger),
		authorizedclient.WithStore(f.store),
		authorizedclient.WithMetrics(f.metrics),
	)
	require.NoError(t, err)
	return f
}

func TestNewProvider_Validation(t *testing.T) {
	_, err := authorizedclient.NewProvider(nil)
	assert.Error(t, err)

	registry, err := clients.NewRegistry()
	require.NoError(t, err)
	_, err = authorizedclient.NewProvider(registry, authorizedclient.WithClockSkew(-time.Second))
	assert.Error(t, err)

	_, err = authorizedclient.NewProvider(registry, authorizedclient.WithStore(nil))
	assert.Error(t, err)
}

func TestAuthorize_UnknownClient(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.provider.Authorize(context.Background(), "nope", authorizedclient.NewPrincipal("alice", "assertion"))
	assert.ErrorIs(t, err, oauth2.ErrUnknownClient)
	assert.Zero(t, f.exchanger.calls.Load())
}

func TestAuthorize_ExchangesAndCaches(t *testing.T) {
	f := setupTestFixture(t)
	f.exchanger.assertions = make(chan string, 1)
	alice := authorizedclient.NewPrincipal("alice", "alice-assertion")

	first, err := f.provider.Authorize(context.Background(), oboRegistrationID, alice)
	require.NoError(t, err)
	assert.Equal(t, "alice-assertion", <-f.exchanger.assertions)

	second, err := f.provider.Authorize(context.Background(), oboRegistrationID, alice)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int32(1), f.exchanger.calls.Load())
	assert.Equal(t, 1, f.store.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheHits))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.CacheMisses))
}

func TestAuthorize_CacheIsPerPrincipal(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.provider.Authorize(context.Background(), oboRegistrationID, authorizedclient.NewPrincipal("alice", "a"))
	require.NoError(t, err)
	_, err = f.provider.Authorize(context.Background(), oboRegistrationID, authorizedclient.NewPrincipal("bob", "b"))
	require.NoError(t, err)

	assert.Equal(t, int32(2), f.exchanger.calls.Load())
	assert.Equal(t, 2, f.store.Len())
}

func TestAuthorize_ClockSkew(t *testing.T) {
	tests := []struct {
		name          string
		beforeExpiry  time.Duration
		wantExchanges int32
	}{
		{name: "61s before expiry is served from cache", beforeExpiry: 61 * time.Second, wantExchanges: 1},
		{name: "59s before expiry is refreshed", beforeExpiry: 59 * time.Second, wantExchanges: 2},
		{name: "exactly skew before expiry is refreshed", beforeExpiry: 60 * time.Second, wantExchanges: 2},
		{name: "past expiry is refreshed", beforeExpiry: -time.Minute, wantExchanges: 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := setupTestFixture(t)
			alice := authorizedclient.NewPrincipal("alice", "a")

			cached, err := f.provider.Authorize(context.Background(), oboRegistrationID, alice)
			require.NoError(t, err)
			t0 := cached.ExpiresAt

			f.clock.Set(t0.Add(-tt.beforeExpiry))
			token, err := f.provider.Authorize(context.Background(), oboRegistrationID, alice)
			require.NoError(t, err)

			assert.Equal(t, tt.wantExchanges, f.exchanger.calls.Load())
			if tt.wantExchanges == 1 {
				assert.Equal(t, cached, token)
			} else {
				assert.NotEqual(t, cached.Value, token.Value)
			}
		})
	}
}

func TestAuthorize_CustomClockSkew(t *testing.T) {
	f := setupTestFixture(t)
	provider, err := authorizedclient.NewProvider(f.registry,
		authorizedclient.WithNowTime(f.clock.Now),
		authorizedclient.WithExchanger(f.exchanger),
		authorizedclient.WithClockSkew(0),
	)
	require.NoError(t, err)
	alice := authorizedclient.NewPrincipal("alice", "a")

	cached, err := provider.Authorize(context.Background(), oboRegistrationID, alice)
	require.NoError(t, err)

	f.clock.Set(cached.ExpiresAt.Add(-time.Second))
	_, err = provider.Authorize(context.Background(), oboRegistrationID, alice)
	require.NoError(t, err)
	assert.Equal(t, int32(1), f.exchanger.calls.Load())
}

func TestAuthorize_NoAssertion(t *testing.T) {
	f := setupTestFixture(t)

	_, err := f.provider.Authorize(context.Background(), oboRegistrationID, authorizedclient.NewPrincipal("alice", ""))
	assert.ErrorIs(t, err, oauth2.ErrNoAuthenticatedPrincipal)

	_, err = f.provider.Authorize(context.Background(), oboRegistrationID, authorizedclient.Anonymous)
	assert.ErrorIs(t, err, oauth2.ErrNoAuthenticatedPrincipal)

	_, err = f.provider.Authorize(context.Background(), oboRegistrationID, nil)
	assert.ErrorIs(t, err, oauth2.ErrNoAuthenticatedPrincipal)

	var failed *oauth2.AuthorizationFailedError
	assert.False(t, errors.As(err, &failed))
	assert.Zero(t, f.exchanger.calls.Load())
}

func TestAuthorize_FailureLeavesCacheUntouched(t *testing.T) {
	f := setupTestFixture(t)
	alice := authorizedclient.NewPrincipal("alice", "a")

	cached, err := f.provider.Authorize(context.Background(), oboRegistrationID, alice)
	require.NoError(t, err)

	f.clock.Set(cached.ExpiresAt)
	f.exchanger.err = &oauth2.TokenExchangeError{Kind: oauth2.KindStatus, StatusCode: 400, Body: `{"error":"invalid_grant"}`, URI: "http://as/token"}

	_, err = f.provider.Authorize(context.Background(), oboRegistrationID, alice)
	require.Error(t, err)

	var failed *oauth2.AuthorizationFailedError
	require.ErrorAs(t, err, &failed)
	assert.Equal(t, oboRegistrationID, failed.RegistrationID)
	assert.Equal(t, "alice", failed.Principal)

	var exchangeErr *oauth2.TokenExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Equal(t, `{"error":"invalid_grant"}`, exchangeErr.Body)

	stored, err := f.store.Load(context.Background(), authorizedclient.Key{RegistrationID: oboRegistrationID, PrincipalName: "alice"})
	require.NoError(t, err)
	assert.Equal(t, cached, stored.AccessToken)
}

func TestAuthorize_SingleFlightPerKey(t *testing.T) {
	f := setupTestFixture(t)
	f.exchanger.release = make(chan struct{})
	alice := authorizedclient.NewPrincipal("alice", "a")

	const callers = 10
	var wg sync.WaitGroup
	tokens := make([]*oauth2.AccessToken, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			tokens[i], errs[i] = f.provider.Authorize(context.Background(), oboRegistrationID, alice)
		}(i)
	}

	require.Eventually(t, func() bool { return f.exchanger.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)
	close(f.exchanger.release)
	wg.Wait()

	assert.Equal(t, int32(1), f.exchanger.calls.Load(), "concurrent misses for one key must share one exchange")
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, tokens[0].Value, tokens[i].Value)
	}
}

func TestAuthorize_ContextCancelledWhileWaiting(t *testing.T) {
	f := setupTestFixture(t)
	f.exchanger.release = make(chan struct{})
	defer close(f.exchanger.release)

	go func() {
		_, _ = f.provider.Authorize(context.Background(), oboRegistrationID, authorizedclient.NewPrincipal("alice", "a"))
	}()
	require.Eventually(t, func() bool { return f.exchanger.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.provider.Authorize(ctx, oboRegistrationID, authorizedclient.NewPrincipal("alice", "a"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProvider_RemoveAndPut(t *testing.T) {
	f := setupTestFixture(t)
	alice := authorizedclient.NewPrincipal("alice", "a")

	_, err := f.provider.Authorize(context.Background(), oboRegistrationID, alice)
	require.NoError(t, err)
	require.NoError(t, f.provider.Remove(context.Background(), oboRegistrationID, alice))
	assert.Zero(t, f.store.Len())

	seeded := &oauth2.AccessToken{Value: "seeded", Type: "bearer", ExpiresAt: f.clock.Now().Add(time.Hour)}
	require.NoError(t, f.provider.Put(context.Background(), oboRegistrationID, alice, seeded))
	token, err := f.provider.Authorize(context.Background(), oboRegistrationID, alice)
	require.NoError(t, err)
	assert.Equal(t, "seeded", token.Value)

	assert.ErrorIs(t, f.provider.Put(context.Background(), "nope", alice, seeded), oauth2.ErrUnknownClient)
	assert.ErrorIs(t, f.provider.Put(context.Background(), oboRegistrationID, alice, &oauth2.AccessToken{Value: "no-expiry"}), oauth2.ErrInvalidArgument)
}

func TestAuthorize_CallerCannotChangeCachedToken(t *testing.T) {
	f := setupTestFixture(t)
	alice := authorizedclient.NewPrincipal("alice", "a")

	first, err := f.provider.Authorize(context.Background(), oboRegistrationID, alice)
	require.NoError(t, err)
	first.Scopes[0] = "changed"
	first.AdditionalParameters = map[string]string{"k": "v"}

	second, err := f.provider.Authorize(context.Background(), oboRegistrationID, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{downstreamScope}, second.Scopes)
	assert.Empty(t, second.AdditionalParameters)
	assert.Equal(t, int32(1), f.exchanger.calls.Load())

	seeded := &oauth2.AccessToken{Value: "seeded", Type: "bearer", ExpiresAt: f.clock.Now().Add(time.Hour), Scopes: []string{"a"}}
	require.NoError(t, f.provider.Put(context.Background(), oboRegistrationID, alice, seeded))
	seeded.Scopes[0] = "changed"

	third, err := f.provider.Authorize(context.Background(), oboRegistrationID, alice)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, third.Scopes)
}

func TestProvider_TokenSource(t *testing.T) {
	f := setupTestFixture(t)

	tok, err := f.provider.TokenSource(context.Background(), oboRegistrationID, authorizedclient.NewPrincipal("alice", "a")).Token()
	require.NoError(t, err)
	assert.Equal(t, "token-1", tok.AccessToken)
	assert.Equal(t, "Bearer", tok.Type())

	_, err = f.provider.TokenSource(context.Background(), "nope", authorizedclient.Anonymous).Token()
	assert.ErrorIs(t, err, oauth2.ErrUnknownClient)
}

// failingStore fails every Load
type failingStore struct {
	*authorizedclient.MemoryStore
}

func (failingStore) Load(context.Context, authorizedclient.Key) (*authorizedclient.AuthorizedClient, error) {
	return nil, errors.New("store unavailable")
}

func TestAuthorize_StoreLoadFailureStillAcquires(t *testing.T) {
	f := setupTestFixture(t)
	provider, err := authorizedclient.NewProvider(f.registry,
		authorizedclient.WithExchanger(f.exchanger),
		authorizedclient.WithStore(failingStore{authorizedclient.NewMemoryStore()}),
	)
	require.NoError(t, err)

	token, err := provider.Authorize(context.Background(), oboRegistrationID, authorizedclient.NewPrincipal("alice", "a"))
	require.NoError(t, err)
	assert.NotEmpty(t, token.Value)
}

// tokenEndpoint is a minimal token endpoint for the x/oauth2 backed grant types
func tokenEndpoint(t *testing.T, handler func(form url.Values, r *http.Request) (int, string)) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		body, _ := io.ReadAll(r.Body)
		form, _ := url.ParseQuery(string(body))
		status, resp := handler(form, r)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(server.Close)
	return server, &calls
}

func TestAuthorize_ClientCredentials(t *testing.T) {
	server, calls := tokenEndpoint(t, func(form url.Values, r *http.Request) (int, string) {
		if form.Get("grant_type") != "client_credentials" || form.Get("client_id") != "daemon" || form.Get("client_secret") != "daemon-secret" {
			return http.StatusUnauthorized, `{"error":"invalid_client"}`
		}
		return http.StatusOK, `{"access_token":"cc-token","token_type":"Bearer","expires_in":3600,"scope":"` + form.Get("scope") + `"}`
	})
	daemon := &clients.Registration{
		ID:           "example-clientcredentials",
		TokenURI:     server.URL,
		ClientID:     "daemon",
		ClientSecret: "daemon-secret",
		AuthMethod:   oauth2.AuthMethodPost,
		GrantType:    oauth2.ClientCredentialsGrant,
		Scopes:       []string{downstreamScope},
	}
	f := setupTestFixture(t, daemon)

	token, err := f.provider.Authorize(context.Background(), daemon.ID, authorizedclient.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, "cc-token", token.Value)
	assert.Equal(t, []string{downstreamScope}, token.Scopes)
	assert.False(t, token.ExpiresAt.IsZero())

	_, err = f.provider.Authorize(context.Background(), daemon.ID, authorizedclient.Anonymous)
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
	assert.Zero(t, f.exchanger.calls.Load())
}

func TestAuthorize_ClientCredentialsFailure(t *testing.T) {
	server, _ := tokenEndpoint(t, func(url.Values, *http.Request) (int, string) {
		return http.StatusUnauthorized, `{"error":"invalid_client"}`
	})
	daemon := &clients.Registration{
		ID:           "example-clientcredentials",
		TokenURI:     server.URL,
		ClientID:     "daemon",
		ClientSecret: "wrong",
		AuthMethod:   oauth2.AuthMethodBasic,
		GrantType:    oauth2.ClientCredentialsGrant,
		Scopes:       []string{downstreamScope},
	}
	f := setupTestFixture(t, daemon)

	_, err := f.provider.Authorize(context.Background(), daemon.ID, authorizedclient.Anonymous)

	var exchangeErr *oauth2.TokenExchangeError
	require.ErrorAs(t, err, &exchangeErr)
	assert.Equal(t, http.StatusUnauthorized, exchangeErr.StatusCode)
	assert.Equal(t, `{"error":"invalid_client"}`, exchangeErr.Body)
	assert.Zero(t, f.store.Len())
}

func TestAuthorize_AuthorizationCodeRefresh(t *testing.T) {
	server, calls := tokenEndpoint(t, func(form url.Values, r *http.Request) (int, string) {
		if form.Get("grant_type") != "refresh_token" || form.Get("refresh_token") != "refresh-1" {
			return http.StatusBadRequest, `{"error":"invalid_grant"}`
		}
		return http.StatusOK, `{"access_token":"refreshed","token_type":"Bearer","expires_in":3600}`
	})
	web := &clients.Registration{
		ID:           "web-login",
		TokenURI:     server.URL,
		ClientID:     "web",
		ClientSecret: "web-secret",
		AuthMethod:   oauth2.AuthMethodBasic,
		GrantType:    oauth2.AuthorizationCodeGrant,
		Scopes:       []string{"openid"},
	}
	f := setupTestFixture(t, web)
	alice := authorizedclient.NewPrincipal("alice", "")

	_, err := f.provider.Authorize(context.Background(), web.ID, alice)
	assert.ErrorIs(t, err, oauth2.ErrAuthorizationRequired)

	expired := &oauth2.AccessToken{Value: "old", Type: "bearer", ExpiresAt: f.clock.Now().Add(-time.Minute), RefreshToken: "refresh-1"}
	require.NoError(t, f.provider.Put(context.Background(), web.ID, alice, expired))

	token, err := f.provider.Authorize(context.Background(), web.ID, alice)
	require.NoError(t, err)
	assert.Equal(t, "refreshed", token.Value)
	assert.Equal(t, "refresh-1", token.RefreshToken, "refresh token is kept when the server does not rotate it")
	assert.Equal(t, int32(1), calls.Load())
}

func TestAuthorize_FirstCallerCancelledDoesNotFailOthers(t *testing.T) {
	f := setupTestFixture(t)
	f.exchanger.release = make(chan struct{})
	alice := authorizedclient.NewPrincipal("alice", "a")

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.provider.Authorize(ctx, oboRegistrationID, alice)
		firstErr <- err
	}()
	require.Eventually(t, func() bool { return f.exchanger.calls.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	type result struct {
		token *oauth2.AccessToken
		err   error
	}
	second := make(chan result, 1)
	go func() {
		token, err := f.provider.Authorize(context.Background(), oboRegistrationID, alice)
		second <- result{token, err}
	}()

	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)
	close(f.exchanger.release)

	r := <-second
	require.NoError(t, r.err)
	assert.Equal(t, "token-1", r.token.Value)
	assert.Equal(t, int32(1), f.exchanger.calls.Load())
}
