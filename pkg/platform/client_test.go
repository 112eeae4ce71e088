package platform

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"cluster-drift-monitor/pkg/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, routes map[string]string) *Client {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		body, ok := routes[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{URL: srv.URL + "/", Token: "secret"})
	require.NoError(t, err)
	return c
}

func TestClient_ListRegions(t *testing.T) {
	c := newTestServer(t, map[string]string{
		"/cloud/region": `{"status":"OK","payload":[
			{"id":1,"provider":"aws","regionCode":"eu-central-1","name":"Frankfurt"},
			{"id":2,"provider":"KVM","regionCode":"dc-1"}
		]}`,
	})

	regions, err := c.ListRegions(context.Background())
	require.NoError(t, err)
	require.Len(t, regions, 2)

	assert.Equal(t, models.CloudRegion{ID: 1, Provider: models.ProviderAWS, Code: "eu-central-1", Name: "Frankfurt"}, regions[0])
	assert.Equal(t, models.ProviderKVM, regions[1].Provider)
}

func TestClient_LoadJob(t *testing.T) {
	c := newTestServer(t, map[string]string{
		"/run/42": `{"status":"OK","payload":{"id":42,"status":"running"}}`,
		"/run/7":  `{"status":"OK","payload":null}`,
		"/run/8":  `{"status":"ERROR","message":"database unavailable"}`,
	})
	ctx := context.Background()

	job, err := c.LoadJob(ctx, 42)
	require.NoError(t, err)
	assert.Equal(t, int64(42), job.ID)
	assert.Equal(t, models.JobStatusRunning, job.Status)
	assert.False(t, job.Status.IsFinal())

	_, err = c.LoadJob(ctx, 7)
	assert.True(t, errors.Is(err, ErrNotFound), "null payload should be ErrNotFound, got %v", err)

	_, err = c.LoadJob(ctx, 99)
	assert.True(t, errors.Is(err, ErrNotFound), "404 should be ErrNotFound, got %v", err)

	_, err = c.LoadJob(ctx, 8)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database unavailable")
	assert.False(t, errors.Is(err, ErrNotFound))
}

func TestClient_LoadStats(t *testing.T) {
	c := newTestServer(t, map[string]string{
		"/cluster/stats": `{"status":"OK","payload":{"nodes":"12","pendingPods":3,"load":0.75,"state":"degraded"}}`,
	})

	stats, err := c.Load(context.Background())
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"nodes":       "12",
		"pendingPods": "3",
		"load":        "0.75",
		"state":       "degraded",
	}, stats)
}

func TestClient_Unauthorized(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte("invalid token"))
	}))
	defer srv.Close()

	c, err := NewClient(Config{URL: srv.URL})
	require.NoError(t, err)

	_, err = c.ListRegions(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")
}

func TestNewClient_RequiresURL(t *testing.T) {
	_, err := NewClient(Config{URL: "  "})
	assert.Error(t, err)
}
