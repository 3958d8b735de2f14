package metrics

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cortx-dev/cortx-run/internal/launcher"
	"github.com/cortx-dev/cortx-run/internal/observe"
)

func TestStateIsOneHot(t *testing.T) {
	c := NewCollector()

	assert.Equal(t, 1.0, testutil.ToFloat64(c.state.WithLabelValues("not_started")))

	c.StateChanged(string(launcher.StateRunning))

	for _, s := range launcher.AllStates {
		want := 0.0
		if s == launcher.StateRunning {
			want = 1
		}
		assert.Equal(t, want, testutil.ToFloat64(c.state.WithLabelValues(string(s))), "state %s", s)
	}
}

func TestChildLifecycleMetrics(t *testing.T) {
	c := NewCollector()

	c.ChildStarted("compute", 100)
	c.ObserveStats(map[string]observe.Stats{"compute": {PID: 100, RSSBytes: 4096, CPUPercent: 12.5, NumThreads: 3}})

	assert.Equal(t, 1.0, testutil.ToFloat64(c.starts.WithLabelValues("compute")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.childUp.WithLabelValues("compute")))
	assert.Equal(t, 4096.0, testutil.ToFloat64(c.residentBytes.WithLabelValues("compute")))
	assert.Equal(t, 12.5, testutil.ToFloat64(c.cpuPercent.WithLabelValues("compute")))

	c.ChildExited("compute", -1, "signal")

	assert.Equal(t, 0.0, testutil.ToFloat64(c.childUp.WithLabelValues("compute")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.exits.WithLabelValues("compute", "signal")))
	assert.Equal(t, 0, testutil.CollectAndCount(c.residentBytes), "resource gauges are dropped on exit")
}

func TestRouterServesMetricsAndHealth(t *testing.T) {
	c := NewCollector()
	c.ChildStarted("dev-server", 42)

	status := func() interface{} {
		return launcher.Status{State: launcher.StateRunning, StartupComplete: true}
	}
	srv := httptest.NewServer(NewRouter(c, status))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `cortx_run_child_starts_total{child="dev-server"} 1`)
	assert.Contains(t, string(body), `cortx_run_launcher_state{state="not_started"} 1`)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var health struct {
		Status   string          `json:"status"`
		Launcher launcher.Status `json:"launcher"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, launcher.StateRunning, health.Launcher.State)
	assert.True(t, health.Launcher.StartupComplete)

	resp, err = http.Post(srv.URL+"/health", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestServerStartAndShutdown(t *testing.T) {
	s := NewServer("127.0.0.1:0", NewCollector(), nil, nil)
	require.NoError(t, s.Start())

	resp, err := http.Get("http://" + s.Addr() + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, s.Shutdown(ctx))
}

func TestWatchProcessesSamplesSelf(t *testing.T) {
	c := NewCollector()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		c.WatchProcesses(ctx, 20*time.Millisecond, func() map[string]int {
			return map[string]int{"self": os.Getpid()}
		}, nil)
	}()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(c.residentBytes.WithLabelValues("self")) > 0
	}, 5*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("WatchProcesses did not stop on cancel")
	}
}
