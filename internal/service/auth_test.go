package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/iliyamo/blog-cms/internal/metrics"
	q "github.com/iliyamo/blog-cms/internal/queue"
	"github.com/iliyamo/blog-cms/internal/repository"
	"github.com/iliyamo/blog-cms/internal/utils"
)

type recordingPublisher struct {
	mu     sync.Mutex
	events []q.AuthEvent
	err    error
}

func (p *recordingPublisher) Publish(_ context.Context, ev q.AuthEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *recordingPublisher) last() q.AuthEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.events[len(p.events)-1]
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type fakeRevoker struct {
	revoked map[string]time.Time
}

func (f *fakeRevoker) Revoke(_ context.Context, id string, exp time.Time) error {
	f.revoked[id] = exp
	return nil
}

type fixture struct {
	svc     *AuthService
	store   *repository.MemoryUserRepo
	events  *recordingPublisher
	metrics *metrics.Metrics
	tokens  *utils.TokenIssuer
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	hasher, err := utils.NewPasswordHasher(utils.AlgoBcrypt, bcrypt.MinCost, utils.Argon2Params{})
	require.NoError(t, err)
	tokens, err := utils.NewTokenIssuer("0123456789abcdef0123456789abcdef", "HS256", 24*time.Hour)
	require.NoError(t, err)

	store := repository.NewMemoryUserRepo()
	events := &recordingPublisher{}
	m := metrics.New(prometheus.NewRegistry())
	svc, err := NewAuthService(AuthDeps{
		Users:   repository.NewCredentials(store, hasher),
		Hasher:  hasher,
		Tokens:  tokens,
		Events:  events,
		Metrics: m,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	require.NoError(t, err)
	return fixture{svc: svc, store: store, events: events, metrics: m, tokens: tokens}
}

func TestRegisterThenLogin(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	u, err := f.svc.Register(ctx, RegisterInput{Username: "alice", Email: "a@x.com", Password: "secret1", IP: "10.0.0.1"})
	require.NoError(t, err)
	assert.NotEqual(t, "secret1", u.PasswordHash)

	res, err := f.svc.Login(ctx, "a@x.com", "secret1", "10.0.0.1")
	require.NoError(t, err)
	assert.Equal(t, u.ID, res.User.ID)

	claims, err := f.tokens.Verify(res.Token.Token)
	require.NoError(t, err)
	assert.Equal(t, u.ID, claims.UserID)

	assert.Equal(t, []string{q.EventUserRegistered, q.EventUserLoggedIn}, f.events.types())
	login := f.events.last()
	assert.Equal(t, "alice", login.Username)
	assert.Equal(t, "a@x.com", login.Email)
	assert.Equal(t, "10.0.0.1", login.IP)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Registrations.WithLabelValues("created")))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Logins.WithLabelValues("success")))
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Register(ctx, RegisterInput{Username: "alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)
	_, err = f.svc.Register(ctx, RegisterInput{Username: "alice2", Email: "A@x.com", Password: "secret2"})
	assert.ErrorIs(t, err, repository.ErrConflict)
	assert.Equal(t, 1, f.store.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Registrations.WithLabelValues("conflict")))
}

func TestRegisterConcurrentSameEmail(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.Register(context.Background(), RegisterInput{
				Username: "user" + string(rune('a'+i)),
				Email:    "same@x.com",
				Password: "secret1",
			})
		}(i)
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		assert.ErrorIs(t, err, repository.ErrConflict)
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, f.store.Len())
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.Register(ctx, RegisterInput{Username: "alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	_, wrongPassword := f.svc.Login(ctx, "a@x.com", "wrong-password", "")
	_, unknownEmail := f.svc.Login(ctx, "nobody@x.com", "secret1", "")

	assert.ErrorIs(t, wrongPassword, ErrInvalidCredentials)
	assert.ErrorIs(t, unknownEmail, ErrInvalidCredentials)
	assert.Equal(t, wrongPassword.Error(), unknownEmail.Error())
	assert.Equal(t, 2.0, testutil.ToFloat64(f.metrics.Logins.WithLabelValues("invalid_credentials")))
}

func TestPublishFailureDoesNotFailRegistration(t *testing.T) {
	f := newFixture(t)
	f.events.err = errors.New("broker down")

	_, err := f.svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "a@x.com", Password: "secret1"})
	assert.NoError(t, err)
}

func TestLogoutRevokesToken(t *testing.T) {
	f := newFixture(t)
	rev := &fakeRevoker{revoked: map[string]time.Time{}}
	f.svc.Revoker = rev

	exp := time.Now().Add(time.Hour)
	err := f.svc.Logout(context.Background(), utils.Claims{UserID: "1", TokenID: "jti-1", ExpiresAt: exp}, "")
	require.NoError(t, err)
	assert.Equal(t, exp, rev.revoked["jti-1"])
	assert.Equal(t, []string{q.EventUserLoggedOut}, f.events.types())
}

func TestLogoutWithoutRevokerIsNoop(t *testing.T) {
	f := newFixture(t)
	assert.NoError(t, f.svc.Logout(context.Background(), utils.Claims{UserID: "1", TokenID: "jti-1"}, ""))
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	u, err := f.svc.Register(context.Background(), RegisterInput{Username: "alice", Email: "a@x.com", Password: "secret1"})
	require.NoError(t, err)

	got, err := f.svc.Me(context.Background(), u.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)

	_, err = f.svc.Me(context.Background(), "missing")
	assert.ErrorIs(t, err, repository.ErrNotFound)
}

func TestNewAuthServiceRequiresDeps(t *testing.T) {
	_, err := NewAuthService(AuthDeps{})
	assert.Error(t, err)
}
