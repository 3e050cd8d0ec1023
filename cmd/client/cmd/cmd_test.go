package cmd

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/slog"

	"orgsync/internal/app/server"
	"orgsync/internal/config"
	"orgsync/internal/domain/member"
	"orgsync/internal/infrastructure/migration"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()

	root, rt := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)

	err := root.Execute()
	rt.close()
	return out.String(), err
}

// startServer поднимает сервер на SQLite и возвращает id организации
func startServer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	cfg := &config.Config{
		Env: config.EnvProd,
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

	srv := httptest.NewServer(app.Handler())
	t.Cleanup(srv.Close)

	t.Setenv("APP_ENV", "prod")
	t.Setenv("SERVER_ADDRESS", strings.TrimPrefix(srv.URL, "http://"))
	t.Setenv("CLIENT_DATA_PATH", filepath.Join(t.TempDir(), "client.db"))

	return org.ID
}

func TestCommands_OfflineEditThenSync(t *testing.T) {
	org := startServer(t)

	_, err := run(t, "put", "customer", "c-1", "--data", `{"name":"Acme","phone":"111"}`)
	require.NoError(t, err)

	out, err := run(t, "list", "customer")
	require.NoError(t, err)
	assert.Contains(t, out, "c-1")
	assert.Contains(t, out, "name=Acme phone=111")

	_, err = run(t, "sync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "syncctl login")

	_, err = run(t, "login", "--org", org, "--login", "alice", "--password", "Secret123")
	require.NoError(t, err)

	out, err = run(t, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "Отправлено: 1")

	_, err = run(t, "put", "customer", "c-1", "--data", `{"phone":"222"}`, "--base", "1")
	require.NoError(t, err)
	_, err = run(t, "sync")
	require.NoError(t, err)

	out, err = run(t, "get", "customer", "c-1")
	require.NoError(t, err)
	var item struct {
		Version int64          `json:"version"`
		Data    map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &item), out)
	assert.Equal(t, int64(2), item.Version)
	assert.Equal(t, "222", item.Data["phone"])

	_, err = run(t, "delete", "customer", "c-1")
	require.NoError(t, err)
	_, err = run(t, "get", "customer", "c-1")
	assert.Error(t, err)

	out, err = run(t, "--json", "status")
	require.NoError(t, err)
	var status struct {
		Authenticated bool `json:"authenticated"`
		Pending       int  `json:"pending"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &status), out)
	assert.True(t, status.Authenticated)
	assert.Equal(t, 1, status.Pending)
}

func TestCommands_RejectionIsReported(t *testing.T) {
	org := startServer(t)

	_, err := run(t, "login", "--org", org, "--login", "alice", "--password", "Secret123")
	require.NoError(t, err)

	_, err = run(t, "put", "customer", "c-1", "--data", `{"name":"Acme"}`)
	require.NoError(t, err)
	_, err = run(t, "sync")
	require.NoError(t, err)

	_, err = run(t, "put", "customer", "c-1", "--data", `{"name":"Stale"}`, "--base", "7")
	require.NoError(t, err)

	out, err := run(t, "sync")
	require.NoError(t, err)
	assert.Contains(t, out, "отклонено")

	out, err = run(t, "status", "--failed")
	require.NoError(t, err)
	assert.Contains(t, out, "Отклонено: 1")
	assert.Contains(t, out, "update customer/c-1")
}

func TestCommands_InvalidInput(t *testing.T) {
	startServer(t)

	_, err := run(t, "put", "customer", "c-1", "--data", "not json")
	assert.Error(t, err)

	_, err = run(t, "put", "customer")
	assert.Error(t, err)

	_, err = run(t, "login", "--org", "x")
	assert.Error(t, err)

	_, err = run(t, "login", "--org", "x", "--login", "alice", "--password", "wrong")
	assert.Error(t, err)

	out, err := run(t, "list", "job")
	require.NoError(t, err)
	assert.Contains(t, out, "Записи не найдены")
}
