package opensky

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

const statesBody = `{
  "time": 1768700000,
  "states": [
    ["76cd67", "SIA238  ", "Singapore", 1768699990, 1768699995, 103.99, 1.36, 10668.0, false, 240.5, 312.0, 0.0, null, 10900.0, "1234", false, 0],
    ["7c6b2d", "QFA1    ", "Australia", null, 1768699000, null, null, null, true, 0.0, null, null, null, null, null, false, 0]
  ]
}`

func TestClient_GetAllStates_ParsesRows(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/states/all", r.URL.Path)
		require.Empty(t, r.URL.RawQuery)
		_, _ = w.Write([]byte(statesBody))
	}))
	defer srv.Close()

	states, err := New(srv.URL).GetAllStates(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, states, 2)

	sq := states[0]
	require.Equal(t, "76cd67", sq.ICAO24)
	require.Equal(t, "SIA238", sq.Callsign)
	require.Equal(t, "Singapore", sq.OriginCountry)
	require.False(t, sq.OnGround)
	require.NotNil(t, sq.Latitude)
	require.InDelta(t, 1.36, *sq.Latitude, 1e-9)
	require.InDelta(t, 103.99, *sq.Longitude, 1e-9)
	require.InDelta(t, 240.5, *sq.Velocity, 1e-9)
	require.Equal(t, int64(1768699995), sq.LastContact)
	require.Equal(t, "1234", sq.Squawk)

	qf := states[1]
	require.Equal(t, "QFA1", qf.Callsign)
	require.True(t, qf.OnGround)
	require.Nil(t, qf.Latitude)
	require.Nil(t, qf.TimePosition)
}

func TestClient_GetAllStates_BoundingBox(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		require.Equal(t, "1.2", q.Get("lamin"))
		require.Equal(t, "103.8", q.Get("lomin"))
		require.Equal(t, "1.5", q.Get("lamax"))
		require.Equal(t, "104.1", q.Get("lomax"))
		_, _ = w.Write([]byte(`{"time": 1, "states": null}`))
	}))
	defer srv.Close()

	states, err := New(srv.URL).GetAllStates(context.Background(), &BoundingBox{LaMin: 1.2, LoMin: 103.8, LaMax: 1.5, LoMax: 104.1})
	require.NoError(t, err)
	require.Empty(t, states)
}

func TestClient_GetAllStates_RateLimited(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetAllStates(context.Background(), nil)
	require.ErrorIs(t, err, ErrRateLimited)
}

func TestClient_GetAllStates_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	_, err := New(srv.URL).GetAllStates(context.Background(), nil)
	require.Error(t, err)
	require.NotErrorIs(t, err, ErrRateLimited)
}
