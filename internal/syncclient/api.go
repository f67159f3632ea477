package syncclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	apierrors "github.com/yukikurage/kanban-realtime-api/internal/errors"
	"github.com/yukikurage/kanban-realtime-api/internal/models"
)

// StatusError is a non-2xx REST response.
type StatusError struct {
	StatusCode int
	apierrors.APIError
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("status %d: %s: %s", e.StatusCode, e.Code, e.Message)
}

// APIClient reads board snapshots from the REST API.
type APIClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// NewAPIClient creates a client for the REST API at baseURL. A nil client
// uses http.DefaultClient.
func NewAPIClient(baseURL, token string, client *http.Client) *APIClient {
	if client == nil {
		client = http.DefaultClient
	}
	return &APIClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: client,
	}
}

// Board fetches a board by slug.
func (a *APIClient) Board(ctx context.Context, slug string) (*models.Board, error) {
	var body struct {
		Board *models.Board `json:"board"`
	}
	if err := a.get(ctx, "/api/boards/"+url.PathEscape(slug), &body); err != nil {
		return nil, err
	}
	if body.Board == nil {
		return nil, fmt.Errorf("board %s missing from response", slug)
	}
	return body.Board, nil
}

// Columns fetches a board's columns.
func (a *APIClient) Columns(ctx context.Context, boardID string) ([]models.Column, error) {
	var body struct {
		Columns []models.Column `json:"columns"`
	}
	if err := a.get(ctx, "/api/columns/board/"+url.PathEscape(boardID), &body); err != nil {
		return nil, err
	}
	return body.Columns, nil
}

// Tasks fetches all of a board's tasks.
func (a *APIClient) Tasks(ctx context.Context, boardID string) ([]models.Task, error) {
	var body struct {
		Tasks []models.Task `json:"tasks"`
	}
	if err := a.get(ctx, "/api/tasks/board/"+url.PathEscape(boardID), &body); err != nil {
		return nil, err
	}
	return body.Tasks, nil
}

func (a *APIClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+a.token)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		statusErr := &StatusError{StatusCode: resp.StatusCode}
		json.Unmarshal(body, &statusErr.APIError)
		return statusErr
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return nil
}
