package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wellbeing-foundation/registration-engine/internal/models"
)

// Common errors
var (
	ErrNotFound = errors.New("resource not found")
	ErrNotJSON  = errors.New("response is not JSON")
)

// APIError is a non-OK response from the foundation API
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// Is makes 404 responses match ErrNotFound
func (e *APIError) Is(target error) bool {
	return target == ErrNotFound && e.StatusCode == http.StatusNotFound
}

// Client is a Go SDK for the foundation REST API
type Client struct {
	baseURL    string
	apiKey     string
	token      string
	timeout    time.Duration
	httpClient *http.Client
}

// Option configures the client
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTimeout sets the client timeout. Zero means no timeout. It applies
// to a copy of any client passed with WithHTTPClient.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.timeout = timeout
	}
}

// WithAPIKey sets the service key sent as X-API-Key
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// NewClient creates a new foundation API client
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}

	for _, opt := range opts {
		opt(c)
	}

	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}

	return c
}

// WithBearer returns a copy of the client that calls the API on behalf of
// the user owning token.
func (c *Client) WithBearer(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

// EventListing is the event detail payload: the event plus the caller's
// enrollment flag.
type EventListing struct {
	models.Event
	IsEnrolled bool `json:"isEnrolled"`
}

// GetEvent retrieves an event by slug
func (c *Client) GetEvent(ctx context.Context, slug string) (*EventListing, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/api/events/user/event/"+url.PathEscape(slug), nil)
	if err != nil {
		return nil, err
	}

	var result EventListing
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	return &result, nil
}

// GetUserDetails retrieves the profile of a user
func (c *Client) GetUserDetails(ctx context.Context, userID models.ID) (*models.UserProfile, error) {
	q := url.Values{}
	q.Set("user_id", userID.String())

	resp, err := c.doRequest(ctx, http.MethodGet, "/api/userdetails?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	// Some deployments wrap the profile in a data envelope
	var wrapped struct {
		Data *models.UserProfile `json:"data"`
	}
	if err := json.Unmarshal(resp, &wrapped); err == nil && wrapped.Data != nil {
		return wrapped.Data, nil
	}

	var profile models.UserProfile
	if err := json.Unmarshal(resp, &profile); err != nil {
		return nil, fmt.Errorf("failed to unmarshal user details: %w", err)
	}

	return &profile, nil
}

// ListQuestions retrieves the registration questions of an event
func (c *Client) ListQuestions(ctx context.Context, eventID models.ID) ([]models.Question, error) {
	q := url.Values{}
	q.Set("event_id", eventID.String())

	resp, err := c.doRequest(ctx, http.MethodGet, "/api/admin/questions?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Data []models.Question `json:"data"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal questions: %w", err)
	}

	return result.Data, nil
}

// ListAnswers retrieves the answers a user already saved for an event
func (c *Client) ListAnswers(ctx context.Context, userID, eventID models.ID) ([]models.SavedAnswer, error) {
	q := url.Values{}
	q.Set("user_id", userID.String())
	q.Set("event_id", eventID.String())

	resp, err := c.doRequest(ctx, http.MethodGet, "/api/admin/answers?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var result struct {
		Data []models.SavedAnswer `json:"data"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal answers: %w", err)
	}

	return result.Data, nil
}

// SaveAnswer persists one answer
func (c *Client) SaveAnswer(ctx context.Context, rec models.AnswerRecord) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal answer: %w", err)
	}

	resp, err := c.doRequest(ctx, http.MethodPost, "/api/admin/answers", bytes.NewReader(body))
	if err != nil {
		return err
	}

	var result struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(resp, &result); err != nil {
		return fmt.Errorf("failed to unmarshal save response: %w", err)
	}

	if !result.Success {
		return &APIError{StatusCode: http.StatusOK, Message: firstNonEmpty(result.Error, result.Message, "answer was not saved")}
	}

	return nil
}

// doRequest performs an HTTP request and returns the JSON body
func (c *Client) doRequest(ctx context.Context, method, path string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return nil, &APIError{StatusCode: resp.StatusCode, Message: errorMessage(respBody)}
	}

	if !isJSON(resp.Header.Get("Content-Type")) {
		return nil, fmt.Errorf("%w: content type %q", ErrNotJSON, resp.Header.Get("Content-Type"))
	}

	return respBody, nil
}

func isJSON(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

// errorMessage pulls a message out of an error body, JSON or not
func errorMessage(body []byte) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := firstNonEmpty(payload.Error, payload.Message); msg != "" {
			return msg
		}
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200]
	}
	return msg
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
