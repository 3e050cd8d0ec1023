package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	gosync "sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"orgsync/internal/app/client"
	clientConfig "orgsync/internal/app/client/config"
	"orgsync/internal/app/server"
	"orgsync/internal/config"
	"orgsync/internal/domain/member"
	"orgsync/internal/infrastructure/migration"
)

// flakyProxy пропускает запрос на сервер, но может потерять ответ на push
type flakyProxy struct {
	next     http.Handler
	dropPush atomic.Bool
}

func (p *flakyProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if p.dropPush.Load() && strings.HasSuffix(r.URL.Path, "/sync/push") {
		p.next.ServeHTTP(httptest.NewRecorder(), r)
		w.WriteHeader(http.StatusBadGateway)
		return
	}
	p.next.ServeHTTP(w, r)
}

type env struct {
	org   string
	proxy *flakyProxy
	addr  string
}

func newEnv(t *testing.T) *env {
	t.Helper()
	ctx := context.Background()

	cfg := &config.Config{
		Env: config.EnvLocal,
		DB: config.DB{
			Driver:      config.DriverSQLite,
			DatabaseURI: filepath.Join(t.TempDir(), "server.db"),
		},
		Session: config.Session{TTL: time.Hour},
		Sync:    config.Sync{MaxBatchSize: 100, DefaultPullLimit: 100, MaxPullLimit: 500, TombstoneRetention: time.Hour},
	}
	require.NoError(t, migration.NewMigration(cfg.DB, nil).Up())

	app, err := server.New(ctx, cfg, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	org, err := app.Members.CreateOrganization(ctx, "Acme Field Services")
	require.NoError(t, err)
	_, err = app.Members.Add(ctx, org.ID, "alice", "Secret123", member.RoleEditor)
	require.NoError(t, err)
	_, err = app.Members.Add(ctx, org.ID, "bob", "Secret123", member.RoleEditor)
	require.NoError(t, err)

	proxy := &flakyProxy{next: app.Handler()}
	srv := httptest.NewServer(proxy)
	t.Cleanup(srv.Close)

	return &env{org: org.ID, proxy: proxy, addr: strings.TrimPrefix(srv.URL, "http://")}
}

func (e *env) device(t *testing.T, login string) *client.App {
	t.Helper()

	app, err := client.New(&clientConfig.Config{
		Env:           "local",
		ServerAddress: e.addr,
		DataPath:      filepath.Join(t.TempDir(), login+".db"),
		PushBatchSize: 2,
		Timeout:       5 * time.Second,
	}, slog.Default())
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })

	if login != "" {
		require.NoError(t, app.Login(context.Background(), e.org, login, "Secret123"))
	}
	return app
}

func TestApp_TwoDevicesConverge(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.device(t, "alice")
	bob := e.device(t, "bob")

	_, err := alice.Create(ctx, "customer", "c-1", map[string]any{"name": "Acme", "phone": "111"})
	require.NoError(t, err)
	_, err = alice.Create(ctx, "customer", "c-2", map[string]any{"name": "Globex"})
	require.NoError(t, err)
	_, err = alice.Create(ctx, "job", "j-1", map[string]any{"customer_id": "c-1", "title": "Install"})
	require.NoError(t, err)

	res, err := alice.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Uploaded)
	assert.Empty(t, res.Errors)
	assert.Equal(t, 3, res.Downloaded)

	res, err = bob.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Downloaded)

	item, err := bob.Get(ctx, "customer", "c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), item.Version)
	assert.Equal(t, "Acme", item.Data["name"])

	// офлайн правки разных полей одной записи
	_, err = alice.Update(ctx, "customer", "c-1", map[string]any{"name": "Acme Corp"}, nil)
	require.NoError(t, err)
	_, err = bob.Update(ctx, "customer", "c-1", map[string]any{"phone": "222"}, nil)
	require.NoError(t, err)
	_, err = bob.Delete(ctx, "customer", "c-2")
	require.NoError(t, err)

	_, err = alice.Sync(ctx)
	require.NoError(t, err)
	_, err = bob.Sync(ctx)
	require.NoError(t, err)
	_, err = alice.Sync(ctx)
	require.NoError(t, err)

	for _, device := range []*client.App{alice, bob} {
		item, err := device.Get(ctx, "customer", "c-1")
		require.NoError(t, err)
		assert.Equal(t, "Acme Corp", item.Data["name"])
		assert.Equal(t, "222", item.Data["phone"])
		assert.Equal(t, int64(3), item.Version)

		_, err = device.Get(ctx, "customer", "c-2")
		assert.ErrorIs(t, err, client.ErrNotFound)

		status, err := device.Status(ctx)
		require.NoError(t, err)
		assert.Zero(t, status.Pending)
		assert.NotEmpty(t, status.Cursor)
	}
}

func TestApp_LostResponseIsRetriedOnce(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.device(t, "alice")

	_, err := alice.Create(ctx, "customer", "c-1", map[string]any{"name": "Acme"})
	require.NoError(t, err)

	e.proxy.dropPush.Store(true)
	_, err = alice.Sync(ctx)
	require.ErrorIs(t, err, client.ErrUnavailable)

	status, err := alice.Status(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, status.Pending)

	e.proxy.dropPush.Store(false)
	res, err := alice.Sync(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Duplicates)
	assert.Zero(t, res.Uploaded)

	item, err := alice.Get(ctx, "customer", "c-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), item.Version)
}

func TestApp_RejectedMutationIsKept(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.device(t, "alice")

	key, err := alice.Update(ctx, "customer", "missing", map[string]any{"name": "Nobody"}, nil)
	require.NoError(t, err)

	res, err := alice.Sync(ctx)
	require.NoError(t, err)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "NOT_FOUND", res.Errors[0].Code)

	failed, err := alice.Failed(ctx)
	require.NoError(t, err)
	require.Len(t, failed, 1)
	assert.Equal(t, key, failed[0].Op.IdempotencyKey)
	assert.Equal(t, client.OutboxFailed, failed[0].Status)

	status, err := alice.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.Pending)
	assert.Equal(t, 1, status.Failed)
}

func TestApp_RequiresLogin(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	anon := e.device(t, "")

	require.NoError(t, anon.HealthCheck(ctx))

	_, err := anon.Create(ctx, "customer", "c-1", map[string]any{"name": "Acme"})
	require.NoError(t, err)

	_, err = anon.Sync(ctx)
	assert.ErrorIs(t, err, client.ErrUnauthorized)

	err = anon.Login(ctx, e.org, "alice", "wrong-password")
	assert.ErrorIs(t, err, client.ErrUnauthorized)

	status, err := anon.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Authenticated)
	assert.Equal(t, 1, status.Pending)
	assert.NotEmpty(t, status.DeviceID)

	_, err = anon.Create(ctx, "", "c-2", nil)
	assert.ErrorIs(t, err, client.ErrInvalidInput)
}

func TestApp_ConcurrentSyncIsRejected(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	alice := e.device(t, "alice")

	for i := 0; i < 20; i++ {
		_, err := alice.Create(ctx, "note", "n-"+strings.Repeat("x", i+1), map[string]any{"body": "text"})
		require.NoError(t, err)
	}

	var (
		wg       gosync.WaitGroup
		inFlight atomic.Int32
		ok       atomic.Int32
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := alice.Sync(ctx)
			switch {
			case err == nil:
				ok.Add(1)
			case assert.ErrorIs(t, err, client.ErrSyncInProgress):
				inFlight.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(4), ok.Load()+inFlight.Load())
	assert.GreaterOrEqual(t, ok.Load(), int32(1))

	status, err := alice.Status(ctx)
	require.NoError(t, err)
	assert.Zero(t, status.Pending)
}
