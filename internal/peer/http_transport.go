package peer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"playmesh/internal/core/domain"
)

const (
	DefaultPollInterval   = 400 * time.Millisecond
	DefaultRequestTimeout = 5 * time.Second
)

// HTTPTransport drives signaling over the REST surface, pulling the
// seat mailbox on a fixed-interval poll. It is the lowest common
// denominator transport: it works anywhere plain HTTP does.
type HTTPTransport struct {
	baseURL string
	client  *http.Client

	pollInterval time.Duration

	messages chan domain.SignalMessage
	errors   chan error
	cancel   context.CancelFunc

	logger *zap.SugaredLogger
}

func NewHTTPTransport(baseURL string, pollInterval, requestTimeout time.Duration, logger *zap.SugaredLogger) *HTTPTransport {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	if requestTimeout <= 0 {
		requestTimeout = DefaultRequestTimeout
	}
	return &HTTPTransport{
		baseURL:      baseURL,
		client:       &http.Client{Timeout: requestTimeout},
		pollInterval: pollInterval,
		messages:     make(chan domain.SignalMessage, 32),
		errors:       make(chan error, 1),
		logger:       logger,
	}
}

func (t *HTTPTransport) Create(ctx context.Context, code domain.RoomCode) (*domain.CreateResult, error) {
	var body io.Reader
	if code != "" {
		payload, err := json.Marshal(map[string]string{"room_code": string(code)})
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(payload)
	}

	var result domain.CreateResult
	if err := t.doJSON(ctx, http.MethodPost, "/api/v1/rooms", body, http.StatusCreated, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (t *HTTPTransport) Join(ctx context.Context, code domain.RoomCode) (*domain.JoinResult, error) {
	var result domain.JoinResult
	path := fmt.Sprintf("/api/v1/rooms/%s/join", code)
	if err := t.doJSON(ctx, http.MethodPost, path, nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (t *HTTPTransport) Rejoin(ctx context.Context, code domain.RoomCode, seat domain.Seat, token domain.Token) error {
	payload, err := json.Marshal(map[string]interface{}{
		"seat":       int(seat),
		"peer_token": string(token),
	})
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/api/v1/rooms/%s/rejoin", code)
	return t.doJSON(ctx, http.MethodPost, path, bytes.NewReader(payload), http.StatusOK, nil)
}

func (t *HTTPTransport) Relay(ctx context.Context, code domain.RoomCode, msg domain.SignalMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/api/v1/rooms/%s/relay", code)
	return t.doJSON(ctx, http.MethodPost, path, bytes.NewReader(payload), http.StatusOK, nil)
}

func (t *HTTPTransport) Leave(ctx context.Context, code domain.RoomCode, seat domain.Seat) error {
	payload, err := json.Marshal(map[string]int{"seat": int(seat)})
	if err != nil {
		return err
	}
	path := fmt.Sprintf("/api/v1/rooms/%s/leave", code)
	return t.doJSON(ctx, http.MethodPost, path, bytes.NewReader(payload), http.StatusOK, nil)
}

// Listen starts the poll loop. A failed poll pushes ErrTransportLost
// and stops the loop; the reconnection controller owns retries.
func (t *HTTPTransport) Listen(ctx context.Context, code domain.RoomCode, seat domain.Seat, token domain.Token) error {
	if t.cancel != nil {
		t.cancel()
	}
	loopCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel

	go t.pollLoop(loopCtx, code, seat)
	return nil
}

func (t *HTTPTransport) pollLoop(ctx context.Context, code domain.RoomCode, seat domain.Seat) {
	ticker := time.NewTicker(t.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			messages, err := t.poll(ctx, code, seat)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				t.logger.Warnw("poll failed", "room_code", code, "seat", seat, "error", err)
				t.pushError(fmt.Errorf("%w: %v", domain.ErrTransportLost, err))
				return
			}
			for _, msg := range messages {
				select {
				case t.messages <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (t *HTTPTransport) poll(ctx context.Context, code domain.RoomCode, seat domain.Seat) ([]domain.SignalMessage, error) {
	var result struct {
		Messages []domain.SignalMessage `json:"messages"`
	}
	path := fmt.Sprintf("/api/v1/rooms/%s/poll?seat=%d", code, seat)
	if err := t.doJSON(ctx, http.MethodGet, path, nil, http.StatusOK, &result); err != nil {
		return nil, err
	}
	return result.Messages, nil
}

func (t *HTTPTransport) Messages() <-chan domain.SignalMessage {
	return t.messages
}

func (t *HTTPTransport) Errors() <-chan error {
	return t.errors
}

func (t *HTTPTransport) Close() error {
	if t.cancel != nil {
		t.cancel()
	}
	return nil
}

func (t *HTTPTransport) pushError(err error) {
	select {
	case t.errors <- err:
	default:
	}
}

func (t *HTTPTransport) doJSON(ctx context.Context, method, path string, body io.Reader, wantStatus int, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if urlErr, ok := err.(*url.Error); ok && urlErr.Timeout() {
			return fmt.Errorf("%w: %s %s", domain.ErrTimeout, method, path)
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != wantStatus {
		return decodeError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// decodeError maps the relay's error envelope back onto the domain
// sentinels so callers can use errors.Is across transports.
func decodeError(resp *http.Response) error {
	var envelope struct {
		Error string `json:"error"`
	}
	_ = json.NewDecoder(resp.Body).Decode(&envelope)

	switch envelope.Error {
	case "InvalidCode":
		return domain.ErrInvalidCode
	case "RoomNotFound":
		return domain.ErrRoomNotFound
	case "RoomExists":
		return domain.ErrRoomExists
	case "RoomFull":
		return domain.ErrRoomFull
	case "SeatConflict":
		return domain.ErrSeatConflict
	}
	if resp.StatusCode == http.StatusNotFound {
		return domain.ErrRoomNotFound
	}
	return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, envelope.Error)
}
