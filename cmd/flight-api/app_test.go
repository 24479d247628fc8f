package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	flightsapi "github.com/BearBump/FlightBox/internal/api/flights_api"
	"github.com/BearBump/FlightBox/internal/broker/kafka"
	"github.com/BearBump/FlightBox/internal/broker/messages"
	"github.com/BearBump/FlightBox/internal/metrics"
	"github.com/BearBump/FlightBox/internal/models"
	"github.com/BearBump/FlightBox/internal/services/poller"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type fakeApplier struct {
	mu  sync.Mutex
	got []messages.FlightVerified
	err error
}

func (f *fakeApplier) ApplyVerified(ctx context.Context, msg messages.FlightVerified) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, msg)
	return f.err
}

func (f *fakeApplier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.got)
}

type fakeConsumer struct {
	payloads [][]byte
	results  chan error
}

func (c *fakeConsumer) Consume(ctx context.Context, handler func(key, value []byte) error) error {
	for _, p := range c.payloads {
		c.results <- handler(nil, p)
	}
	<-ctx.Done()
	return ctx.Err()
}

func writeSwagger(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "swagger.json")
	require.NoError(t, os.WriteFile(p, []byte(`{"swagger":"2.0"}`), 0o644))
	return p
}

func TestRunFlightAPI_RequiresSwagger(t *testing.T) {
	err := runFlightAPI(context.Background(), flightAPIOpts{httpAddr: "127.0.0.1:0"}, flightAPIDeps{})
	require.Error(t, err)

	err = runFlightAPI(context.Background(), flightAPIOpts{
		httpAddr:    "127.0.0.1:0",
		swaggerPath: filepath.Join(t.TempDir(), "missing.json"),
	}, flightAPIDeps{})
	require.Error(t, err)
}

func TestFlightVerifiedHandler(t *testing.T) {
	ap := &fakeApplier{}
	h := flightVerifiedHandler(context.Background(), ap)

	err := h(nil, []byte("{not json"))
	require.ErrorIs(t, err, kafka.ErrMalformed)

	err = h(nil, []byte(`{"check_id":1}`))
	require.ErrorIs(t, err, kafka.ErrMalformed)

	b, _ := json.Marshal(messages.FlightVerified{EventID: 5, CheckID: 1, Status: "verified"})
	require.NoError(t, h(nil, b))
	require.Equal(t, 1, ap.count())

	ap.err = errors.New("db down")
	err = h(nil, b)
	require.Error(t, err)
	require.False(t, errors.Is(err, kafka.ErrMalformed))
}

func TestRunFlightAPI_ServesAndConsumes(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New("flightbox", reg)
	m.Verifications.WithLabelValues("verified").Inc()

	good, _ := json.Marshal(messages.FlightVerified{EventID: 7, CheckID: 3, Status: "changed"})
	consumer := &fakeConsumer{payloads: [][]byte{[]byte("garbage"), good}, results: make(chan error, 2)}
	ap := &fakeApplier{}

	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	planner := poller.NewPlanner(poller.PlannerConfig{}, func() time.Time { return now })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	swaggerPath := writeSwagger(t)
	addrCh := make(chan string, 1)
	done := make(chan error, 1)
	go func() {
		done <- runFlightAPI(ctx, flightAPIOpts{
			httpAddr:    "127.0.0.1:0",
			swaggerPath: swaggerPath,
			topic:       messages.TopicFlightVerified,
			onListen:    func(a string) { addrCh <- a },
		}, flightAPIDeps{
			api:      flightsapi.New(nil, planner, nil, nil),
			applier:  ap,
			consumer: consumer,
			gatherer: reg,
		})
	}()

	var base string
	select {
	case a := <-addrCh:
		base = "http://" + a
	case <-time.After(5 * time.Second):
		t.Fatal("server did not start")
	}

	get := func(path string) (int, string) {
		resp, err := http.Get(base + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		b, _ := io.ReadAll(resp.Body)
		return resp.StatusCode, string(b)
	}

	code, body := get("/healthz")
	require.Equal(t, http.StatusOK, code)
	require.JSONEq(t, `{"status":"ok"}`, body)

	code, body = get("/swagger.json")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, "swagger")

	code, body = get("/metrics")
	require.Equal(t, http.StatusOK, code)
	require.Contains(t, body, `flightbox_flight_verifications_total{status="verified"} 1`)

	code, body = get("/v1/flights/schedule?date=2026-03-20")
	require.Equal(t, http.StatusOK, code)
	var ps models.PollingSchedule
	require.NoError(t, json.Unmarshal([]byte(body), &ps))
	require.Equal(t, models.FrequencyTwiceDaily, ps.Frequency)

	require.ErrorIs(t, <-consumer.results, kafka.ErrMalformed)
	require.NoError(t, <-consumer.results)
	require.Equal(t, 1, ap.count())

	cancel()
	select {
	case err := <-done:
		if err != nil {
			require.ErrorIs(t, err, context.Canceled)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
