package spazio

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/deskbook/internal/domain/booking"
	"github.com/example/deskbook/internal/domain/slot"
)

var testWindow = slot.Window{Open: 9, Close: 17}

func testDay() slot.Day { return slot.Day{Year: 2026, Month: time.September, Dom: 14} }

func idFor(t *testing.T, hour int) int {
	t.Helper()
	id, ok := testWindow.IDForHour(hour)
	require.True(t, ok)
	return id
}

func TestFetchDayAvailability_ParsesGrid(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/spazi/7/disponibilita-slot/2026-09-14", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("accept"))
		assert.NotEmpty(t, r.Header.Get("x-request-id"))
		assert.Empty(t, r.Header.Get("authorization"))
		io.WriteString(w, `{"success":true,"data":{"slots":[
			{"orario":"9:00","status":"booked"},
			{"orario":"12:00:00","status":"occupied"},
			{"orario":"15:00","status":"past"}
		]}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, testWindow, zap.NewNop())
	g, err := c.FetchDayAvailability(context.Background(), 7, testDay())
	require.NoError(t, err)

	assert.Equal(t, slot.StatusBooked, g.StatusOf(idFor(t, 9)))
	assert.Equal(t, slot.StatusOccupied, g.StatusOf(idFor(t, 12)))
	assert.Equal(t, slot.StatusPast, g.StatusOf(idFor(t, 15)))
	// Hours the API omits default to bookable.
	assert.Equal(t, slot.StatusAvailable, g.StatusOf(idFor(t, 10)))
}

func TestFetchDayAvailability_ServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		io.WriteString(w, `{"message":"db down"}`)
	}))
	defer srv.Close()

	c := New(srv.URL, testWindow, zap.NewNop())
	_, err := c.FetchDayAvailability(context.Background(), 7, testDay())
	var se *booking.ServerError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusInternalServerError, se.Status)
	assert.Equal(t, "db down", se.Msg)
}

func TestFetchDayAvailability_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // connection refused from here on

	c := New(srv.URL, testWindow, zap.NewNop())
	_, err := c.FetchDayAvailability(context.Background(), 7, testDay())
	var ne *booking.NetworkError
	require.ErrorAs(t, err, &ne)
}

func TestCreateBooking_SendsPayloadAndBearer(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/prenotazioni", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("authorization"))
		assert.Equal(t, "application/json", r.Header.Get("content-type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"success":true,"data":{"id":4711}}`)
	}))
	defer srv.Close()

	c := New(srv.URL, testWindow, zap.NewNop())
	req := booking.Request{
		SpaceID: 7,
		Start:   testDay().At(10),
		End:     testDay().At(14),
	}
	ref, err := c.CreateBooking(context.Background(), "tok-123", req)
	require.NoError(t, err)
	assert.Equal(t, "4711", ref)

	assert.Equal(t, float64(7), got["id_spazio"])
	assert.Equal(t, req.Start.Format(time.RFC3339), got["data_inizio"])
	assert.Equal(t, req.End.Format(time.RFC3339), got["data_fine"])
}

func TestCreateBooking_Conflict(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"success":false,"message":"slot già prenotato"}`)
	}))
	defer srv.Close()

	c := New(srv.URL, testWindow, zap.NewNop())
	_, err := c.CreateBooking(context.Background(), "tok", booking.Request{SpaceID: 7})
	var ce *booking.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "slot già prenotato", ce.Reason)
}

func TestCreateBooking_AuthRequired(t *testing.T) {
	for _, status := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(status)
		}))
		c := New(srv.URL, testWindow, zap.NewNop())
		_, err := c.CreateBooking(context.Background(), "expired", booking.Request{SpaceID: 7})
		assert.ErrorIs(t, err, booking.ErrAuthRequired, "status %d", status)
		srv.Close()
	}
}

func TestNormalizeHour(t *testing.T) {
	cases := map[string]string{
		"9:00":     "09:00",
		"09:00":    "09:00",
		"09:00:00": "09:00",
		" 14:00 ":  "14:00",
		"17":       "17",
	}
	for in, want := range cases {
		assert.Equal(t, want, normalizeHour(in), "input %q", in)
	}
}
