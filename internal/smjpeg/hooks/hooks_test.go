package hooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/alxayo/go-smjpeg/internal/smjpeg/metrics"
)

func TestEventBuilders(t *testing.T) {
	e := NewEvent(EventFramePlayed).WithMovieID("m1").WithTrack("video").WithData("timestamp_ms", uint32(1200))

	require.Equal(t, EventFramePlayed, e.Type)
	require.Equal(t, "m1", e.MovieID)
	require.Equal(t, "video", e.Track)
	require.Equal(t, uint32(1200), e.Data["timestamp_ms"])
	require.Equal(t, "frame_played:video", e.String())
}

func TestManagerRegisterAndTrigger(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	defer m.Close()

	done := make(chan Event, 1)
	probe := probeHook{id: "probe", fn: func(e Event) error {
		done <- e
		return nil
	}}
	require.NoError(t, m.RegisterHook(EventSeek, probe))

	m.TriggerEvent(context.Background(), *NewEvent(EventSeek).WithMovieID("clip"))

	select {
	case e := <-done:
		require.Equal(t, "clip", e.MovieID)
	case <-time.After(time.Second):
		t.Fatal("hook was not executed")
	}
}

func TestManagerUnregisterHook(t *testing.T) {
	m := NewManager(DefaultConfig(), nil)
	defer m.Close()

	p := probeHook{id: "probe", fn: func(Event) error { return nil }}
	require.NoError(t, m.RegisterHook(EventSeek, p))
	require.True(t, m.UnregisterHook(EventSeek, "probe"))
	require.False(t, m.UnregisterHook(EventSeek, "probe"))
}

func TestStdioHookJSONFormat(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "stdio-*.log")
	require.NoError(t, err)
	defer f.Close()

	h := NewStdioHook("stdio", "json").SetOutput(f)
	e := *NewEvent(EventFramePlayed).WithTrack("audio")
	require.NoError(t, h.Execute(context.Background(), e))

	data, err := os.ReadFile(f.Name())
	require.NoError(t, err)
	require.Contains(t, string(data), "SMJPEG_EVENT:")

	var decoded Event
	line := data[len("SMJPEG_EVENT: "):]
	require.NoError(t, json.Unmarshal([]byte(trimNewline(line)), &decoded))
	require.Equal(t, "audio", decoded.Track)
}

func TestStdioHookRejectsUnknownFormat(t *testing.T) {
	h := NewStdioHook("stdio", "xml")
	err := h.Execute(context.Background(), *NewEvent(EventSeek))
	require.Error(t, err)
}

func TestWebhookHookPostsEvent(t *testing.T) {
	received := make(chan Event, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var e Event
		require.NoError(t, json.NewDecoder(r.Body).Decode(&e))
		received <- e
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	h := NewWebhookHook("wh", srv.URL, time.Second, nil)
	err := h.Execute(context.Background(), *NewEvent(EventMovieLoaded).WithMovieID("m2"))
	require.NoError(t, err)

	select {
	case e := <-received:
		require.Equal(t, "m2", e.MovieID)
	case <-time.After(time.Second):
		t.Fatal("webhook was not called")
	}
}

func TestMetricsHookUpdatesCounters(t *testing.T) {
	reg := metrics.NewRegistry()
	require.NoError(t, reg.Register(prometheus.NewRegistry()))

	h := NewMetricsHook("metrics", reg)
	require.NoError(t, h.Execute(context.Background(), *NewEvent(EventFramePlayed).WithTrack("video")))
	require.NoError(t, h.Execute(context.Background(), *NewEvent(EventFrameSkipped).WithTrack("audio")))
	require.NoError(t, h.Execute(context.Background(), *NewEvent(EventSeek)))

	require.Equal(t, float64(1), testutil.ToFloat64(reg.ChunksPlayed.WithLabelValues("video")))
	require.Equal(t, float64(1), testutil.ToFloat64(reg.ChunksSkipped.WithLabelValues("audio")))
	require.Equal(t, float64(1), testutil.ToFloat64(reg.SeekOperations))
}

// probeHook is a minimal Hook used only to observe TriggerEvent dispatch.
type probeHook struct {
	id string
	fn func(Event) error
}

func (p probeHook) Execute(ctx context.Context, e Event) error { return p.fn(e) }
func (p probeHook) Type() string                               { return "probe" }
func (p probeHook) ID() string                                 { return p.id }

func trimNewline(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}
