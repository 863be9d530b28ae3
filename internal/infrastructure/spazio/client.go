package spazio

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/example/deskbook/internal/domain/booking"
	"github.com/example/deskbook/internal/domain/slot"
)

// Client talks to the coworking reservation API. Availability reads are
// anonymous; booking creation carries the user's bearer token.
type Client struct {
	hc     *http.Client
	base   string
	window slot.Window
	log    *zap.Logger
}

func New(baseURL string, window slot.Window, log *zap.Logger) *Client {
	return &Client{
		hc:     &http.Client{Timeout: 10 * time.Second},
		base:   strings.TrimRight(baseURL, "/"),
		window: window,
		log:    log,
	}
}

type availabilityResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Slots []struct {
			Orario string      `json:"orario"`
			Status slot.Status `json:"status"`
		} `json:"slots"`
	} `json:"data"`
	Message string `json:"message"`
}

// FetchDayAvailability loads the slot grid for one space and local calendar
// date. The grid is built fresh on every call; callers own caching.
func (c *Client) FetchDayAvailability(ctx context.Context, spaceID int64, day slot.Day) (*slot.Grid, error) {
	url := fmt.Sprintf("%s/spazi/%d/disponibilita-slot/%s", c.base, spaceID, day)
	status, body, err := c.do(ctx, http.MethodGet, url, "", nil)
	if err != nil {
		return nil, &booking.NetworkError{Err: err}
	}
	if status != http.StatusOK {
		return nil, &booking.ServerError{Status: status, Msg: messageOf(body)}
	}

	var res availabilityResponse
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("parse availability: %w", err)
	}
	if !res.Success {
		return nil, &booking.ServerError{Status: status, Msg: res.Message}
	}

	statusFor := make(map[string]slot.Status, len(res.Data.Slots))
	for _, s := range res.Data.Slots {
		statusFor[normalizeHour(s.Orario)] = s.Status
	}
	return slot.NewGrid(spaceID, day, c.window, statusFor)
}

type createBookingPayload struct {
	IDSpazio   int64  `json:"id_spazio"`
	DataInizio string `json:"data_inizio"`
	DataFine   string `json:"data_fine"`
}

type createBookingResponse struct {
	Success bool `json:"success"`
	Data    struct {
		ID int64 `json:"id"`
	} `json:"data"`
	Message string `json:"message"`
}

// CreateBooking issues one booking-creation call. It maps the response onto
// the failure taxonomy and never retries; retry policy belongs to the caller.
func (c *Client) CreateBooking(ctx context.Context, bearer string, req booking.Request) (string, error) {
	payload := createBookingPayload{
		IDSpazio:   req.SpaceID,
		DataInizio: req.Start.Format(time.RFC3339),
		DataFine:   req.End.Format(time.RFC3339),
	}
	jb, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	status, body, err := c.do(ctx, http.MethodPost, c.base+"/prenotazioni", bearer, jb)
	if err != nil {
		return "", &booking.NetworkError{Err: err}
	}
	switch {
	case status == http.StatusCreated:
		var res createBookingResponse
		if err := json.Unmarshal(body, &res); err != nil {
			return "", fmt.Errorf("parse booking response: %w", err)
		}
		return fmt.Sprintf("%d", res.Data.ID), nil
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return "", booking.ErrAuthRequired
	case status == http.StatusConflict:
		return "", &booking.ConflictError{Reason: messageOf(body)}
	default:
		return "", &booking.ServerError{Status: status, Msg: messageOf(body)}
	}
}

func (c *Client) do(ctx context.Context, method, rawURL, bearer string, body []byte) (int, []byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, rawURL, bytes.NewReader(body))
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("x-request-id", uuid.NewString())
	if body != nil {
		req.Header.Set("content-type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("authorization", "Bearer "+bearer)
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(res.Body); err != nil {
		return res.StatusCode, nil, err
	}
	c.log.Debug("api call",
		zap.String("method", method),
		zap.String("url", rawURL),
		zap.Int("status", res.StatusCode),
	)
	return res.StatusCode, buf.Bytes(), nil
}

// messageOf pulls the optional human-readable reason out of an error body.
func messageOf(body []byte) string {
	var r struct {
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &r)
	return r.Message
}

// normalizeHour maps "9:00" or "09:00:00" onto the grid's "HH:00" labels.
func normalizeHour(s string) string {
	s = strings.TrimSpace(s)
	parts := strings.SplitN(s, ":", 3)
	if len(parts) < 2 {
		return s
	}
	if len(parts[0]) == 1 {
		parts[0] = "0" + parts[0]
	}
	m := parts[1]
	if len(m) > 2 {
		m = m[:2]
	}
	return parts[0] + ":" + m
}
