package app

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kilianp07/dockyard/config"
	"github.com/kilianp07/dockyard/core/lifecycle"
	"github.com/kilianp07/dockyard/core/model"
	coremqtt "github.com/kilianp07/dockyard/core/mqtt"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("DOCKYARD_STORE__DRIVER", "memory")
	t.Setenv("DOCKYARD_SERVER__ADDR", "127.0.0.1:0")
	cfg, err := config.Load("")
	require.NoError(t, err)
	return cfg
}

func newService(t *testing.T) *Service {
	t.Helper()
	svc, err := New(context.Background(), testConfig(t))
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func TestNewProvisionsPool(t *testing.T) {
	svc := newService(t)
	docks, err := svc.Scheduler.Docks(context.Background())
	require.NoError(t, err)
	require.Len(t, docks, 5)
	counts := map[model.DockType]int{}
	for _, d := range docks {
		counts[d.Type]++
		assert.Equal(t, model.DockAvailable, d.Status)
	}
	assert.Equal(t, 2, counts[model.DockLoading])
	assert.Equal(t, 2, counts[model.DockUnloading])
	assert.Equal(t, 1, counts[model.DockPriority])
}

func TestCheckInArrivesTruck(t *testing.T) {
	svc := newService(t)
	ctx := context.Background()
	a, _, err := svc.Scheduler.Book(ctx, lifecycle.BookRequest{
		TruckID: "T1", Supplier: "ACME", RequestedTime: time.Now(), Type: model.AppointmentLoading,
	})
	require.NoError(t, err)

	svc.checkIn(coremqtt.CheckIn{TruckID: "T1", AppointmentID: a.ID})

	got, err := svc.Scheduler.Appointment(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusArrived, got.Status)
	assert.NotNil(t, got.ActualArrivalTime)

	// unknown appointments are logged, not fatal
	svc.checkIn(coremqtt.CheckIn{TruckID: "T9", AppointmentID: "missing"})
}

func TestAPIServesHealthAndMetrics(t *testing.T) {
	svc := newService(t)

	resp, err := svc.API.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = svc.API.App().Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "dockyard_queue_length")
}

func TestRunStopsOnCancel(t *testing.T) {
	svc := newService(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- svc.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Run did not return")
	}
}
