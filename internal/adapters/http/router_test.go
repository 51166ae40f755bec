package http

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/melih/lighthouse-runner/internal/adapters/workspace"
	"github.com/melih/lighthouse-runner/internal/core/domain"
	"github.com/melih/lighthouse-runner/internal/core/logstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()
	engine := &stubEngine{containers: []domain.Container{{ID: "c1", Name: "demo", State: domain.StateRunning}}}
	return NewApp(Handlers{
		Build:      NewBuildHandler(&recordingExecutor{}, workspace.NewManager(t.TempDir(), "Dockerfile"), nil),
		Logs:       NewLogHandler(logstream.NewBroadcaster(), time.Second),
		Containers: NewContainerHandler(engine),
		Proxy:      NewProxyHandler(engine, "localhost"),
	}, fiber.Config{})
}

func TestPreflightAllowsAnyOrigin(t *testing.T) {
	app := newTestApp(t)

	for _, path := range []string{"/api/v1/build_and_run", "/api/v1/logs"} {
		req := httptest.NewRequest(fiber.MethodOptions, path, nil)
		req.Header.Set("Origin", "http://localhost:3000")
		req.Header.Set("Access-Control-Request-Method", fiber.MethodPost)

		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode, path)
		assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"), path)
		assert.Contains(t, resp.Header.Get("Access-Control-Allow-Methods"), fiber.MethodPost, path)
	}
}

func TestCrossOriginRequestCarriesAllowOrigin(t *testing.T) {
	app := newTestApp(t)

	req := httptest.NewRequest(fiber.MethodGet, "/api/v1/containers", nil)
	req.Header.Set("Origin", "http://localhost:3000")

	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}
