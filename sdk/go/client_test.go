package officesimsdk_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"officesim/internal/app"
	"officesim/internal/config"
	"officesim/internal/logger"
	"officesim/internal/server"
	officesimsdk "officesim/sdk/go"
)

func newClient(t *testing.T, secret string) *officesimsdk.Client {
	t.Helper()
	cfg, err := config.FromYAML([]byte("simulation:\n  seed: 11\n  workers: 3\n"))
	require.NoError(t, err)
	runner, err := app.Build(context.Background(), app.Options{Config: cfg, Logger: logger.Discard()})
	require.NoError(t, err)
	handler, err := server.New(server.Config{
		Runner:   runner,
		BasePath: "/v0",
		Auth:     server.AuthConfig{JWTSecret: secret},
		Logger:   logger.Discard(),
	})
	require.NoError(t, err)
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return officesimsdk.New(srv.URL + "/v0")
}

func TestClientRoundTrip(t *testing.T) {
	c := newClient(t, "")
	ctx := context.Background()

	snap, err := c.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, snap.Workers, 4)
	assert.NotEmpty(t, snap.Rooms)

	w, err := c.Worker(ctx, snap.Workers[0].ID)
	require.NoError(t, err)
	assert.Equal(t, snap.Workers[0].Name, w.Name)

	summary, err := c.Tick(ctx, 15, 4)
	require.NoError(t, err)
	assert.Equal(t, "Day 1 - 09:00", summary.Clock)

	pending, err := c.Tasks(ctx, "Pending")
	require.NoError(t, err)
	for _, task := range pending {
		assert.Equal(t, "Pending", task.Status)
	}

	scenarios, err := c.Scenarios(ctx)
	require.NoError(t, err)
	assert.Empty(t, scenarios)

	require.NoError(t, c.StartDay(ctx))
}

func TestClientErrors(t *testing.T) {
	c := newClient(t, "k")
	ctx := context.Background()

	_, err := c.Tick(ctx, 1, 1)
	var apiErr *officesimsdk.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)

	token, err := server.IssueToken("k", "sdk", nil, time.Minute)
	require.NoError(t, err)
	c.BearerToken = token
	_, err = c.Tick(ctx, 1, 1)
	require.NoError(t, err)

	_, err = c.Activate(ctx, "nope", false)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)

	_, err = c.Events(ctx, 10)
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusServiceUnavailable, apiErr.StatusCode)
}
