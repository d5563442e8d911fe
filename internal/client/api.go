package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/sportsmeet/listing-chat/internal/domain"
)

// PageCursor is the keyset position of the oldest message the session
// has loaded.
type PageCursor struct {
	At time.Time
	ID string
}

// API is the synchronous REST surface the session depends on.
type API interface {
	ListMessages(ctx context.Context, roomID string, page, pageSize int, cursor *PageCursor) ([]domain.MessageView, bool, error)
	CreateMessage(ctx context.Context, roomID, text string, replyToID *string) (*domain.MessageView, error)
	MarkRoomRead(ctx context.Context, roomID string) error
}

// APIError is a non-2xx response from the chat service, carrying the
// server's error code so callers can show the specific reason.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("chat api: %d %s: %s", e.Status, e.Code, e.Message)
}

// HTTPAPI implements API against the chat service.
type HTTPAPI struct {
	baseURL string
	userID  string
	http    *http.Client
}

// NewHTTPAPI creates an API client. userID is forwarded as the identity
// header the service trusts from the gateway.
func NewHTTPAPI(baseURL, userID string) *HTTPAPI {
	return &HTTPAPI{
		baseURL: baseURL,
		userID:  userID,
		http:    &http.Client{Timeout: 15 * time.Second},
	}
}

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (a *HTTPAPI) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-User-ID", a.userID)

	resp, err := a.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var envelope apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("chat api: decoding response: %w", err)
	}

	if !envelope.Success {
		apiErr := &APIError{Status: resp.StatusCode}
		if envelope.Error != nil {
			apiErr.Code = envelope.Error.Code
			apiErr.Message = envelope.Error.Message
		}
		return apiErr
	}

	if out != nil {
		return json.Unmarshal(envelope.Data, out)
	}
	return nil
}

func (a *HTTPAPI) ListMessages(ctx context.Context, roomID string, page, pageSize int, cursor *PageCursor) ([]domain.MessageView, bool, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	if cursor != nil {
		q.Set("before_at", cursor.At.Format(time.RFC3339Nano))
		q.Set("before_id", cursor.ID)
	}

	var data struct {
		Messages []domain.MessageView `json:"messages"`
		HasMore  bool                 `json:"has_more"`
	}
	path := fmt.Sprintf("/api/v1/rooms/%s/messages?%s", url.PathEscape(roomID), q.Encode())
	if err := a.do(ctx, http.MethodGet, path, nil, &data); err != nil {
		return nil, false, err
	}
	return data.Messages, data.HasMore, nil
}

func (a *HTTPAPI) CreateMessage(ctx context.Context, roomID, text string, replyToID *string) (*domain.MessageView, error) {
	body := map[string]interface{}{"text": text}
	if replyToID != nil {
		body["reply_to_id"] = *replyToID
	}

	var view domain.MessageView
	path := fmt.Sprintf("/api/v1/rooms/%s/messages", url.PathEscape(roomID))
	if err := a.do(ctx, http.MethodPost, path, body, &view); err != nil {
		return nil, err
	}
	return &view, nil
}

func (a *HTTPAPI) MarkRoomRead(ctx context.Context, roomID string) error {
	path := fmt.Sprintf("/api/v1/rooms/%s/read", url.PathEscape(roomID))
	return a.do(ctx, http.MethodPost, path, nil, nil)
}
