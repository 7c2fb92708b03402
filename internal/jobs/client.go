package jobs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shaiso/Helix/internal/domain"
)

const defaultHTTPTimeout = 30 * time.Second

// SubmitAck — подтверждение приёма job сервисом.
type SubmitAck struct {
	// JobID — идентификатор job на сервисе.
	JobID string

	// State — начальное состояние (обычно queued).
	State domain.JobState

	// Request — зафиксированный запрос для журнала.
	Request *domain.CapturedRequest

	// Response — зафиксированный ответ для журнала.
	Response *domain.CapturedResponse
}

// JobStatus — состояние job по результату одного опроса.
type JobStatus struct {
	// State — состояние job.
	State domain.JobState

	// Progress — прогресс от сервера (0–1), 0 если сервер не прислал.
	Progress float64

	// Error — текст ошибки при State == error.
	Error string

	// Result — сырой результат при State == completed.
	Result map[string]any

	// Response — зафиксированный ответ для журнала.
	Response *domain.CapturedResponse
}

// Client — единый контракт для любого типа remote job.
type Client interface {
	// Submit отправляет job и немедленно возвращает подтверждение.
	// Никогда не блокируется на полную продолжительность job.
	Submit(ctx context.Context, jobType domain.NodeType, payload any) (*SubmitAck, error)

	// Status возвращает текущее состояние job.
	Status(ctx context.Context, jobType domain.NodeType, jobID string) (*JobStatus, error)

	// Cancel запрашивает отмену job. Best-effort: вызывающая сторона
	// не откатывает локальное состояние при ошибке.
	Cancel(ctx context.Context, jobType domain.NodeType, jobID string) error
}

// HTTPClient — Client поверх HTTP API вычислительного сервиса.
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient создаёт HTTPClient.
func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: defaultHTTPTimeout},
	}
}

// submitResponse — форма ответа submit endpoint.
type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// statusResponse — форма ответа status endpoint.
type statusResponse struct {
	Status   string         `json:"status"`
	Progress float64        `json:"progress,omitempty"`
	Error    string         `json:"error,omitempty"`
	Result   map[string]any `json:"result,omitempty"`
}

// Submit реализует Client.
func (c *HTTPClient) Submit(ctx context.Context, jobType domain.NodeType, payload any) (*SubmitAck, error) {
	url := fmt.Sprintf("%s/%s/submit", c.baseURL, jobType)

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: marshal payload: %v", ErrRemoteSubmit, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteSubmit, err)
	}
	req.Header.Set("Content-Type", "application/json")

	captured := &domain.CapturedRequest{
		Method:  http.MethodPost,
		URL:     url,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    payload,
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemoteSubmit, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrRemoteSubmit, err)
	}

	capturedResp := captureResponse(resp, respBody)

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %w", ErrRemoteSubmit,
			&StatusError{Code: resp.StatusCode, Body: truncate(string(respBody), 200)})
	}

	var parsed submitResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if parsed.JobID == "" {
		return nil, fmt.Errorf("%w: submit response has no job_id", ErrMalformedResponse)
	}

	state := domain.JobState(parsed.Status)
	if state == "" {
		state = domain.JobStateQueued
	}

	return &SubmitAck{
		JobID:    parsed.JobID,
		State:    state,
		Request:  captured,
		Response: capturedResp,
	}, nil
}

// Status реализует Client.
func (c *HTTPClient) Status(ctx context.Context, jobType domain.NodeType, jobID string) (*JobStatus, error) {
	url := fmt.Sprintf("%s/%s/status/%s", c.baseURL, jobType, jobID)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemotePoll, err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrRemotePoll, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", ErrRemotePoll, err)
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %w", ErrRemotePoll,
			&StatusError{Code: resp.StatusCode, Body: truncate(string(respBody), 200)})
	}

	var parsed statusResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}

	return &JobStatus{
		State:    domain.JobState(parsed.Status),
		Progress: parsed.Progress,
		Error:    parsed.Error,
		Result:   parsed.Result,
		Response: captureResponse(resp, respBody),
	}, nil
}

// Cancel реализует Client.
func (c *HTTPClient) Cancel(ctx context.Context, jobType domain.NodeType, jobID string) error {
	url := fmt.Sprintf("%s/%s/cancel/%s", c.baseURL, jobType, jobID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return fmt.Errorf("cancel: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("cancel: %w", err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode >= 400 {
		return fmt.Errorf("cancel: %w", &StatusError{Code: resp.StatusCode})
	}
	return nil
}

// captureResponse фиксирует HTTP-ответ для журнала.
func captureResponse(resp *http.Response, body []byte) *domain.CapturedResponse {
	headers := make(map[string]string, len(resp.Header))
	for key := range resp.Header {
		headers[key] = resp.Header.Get(key)
	}

	var data any
	if err := json.Unmarshal(body, &data); err != nil {
		data = truncate(string(body), 500)
	}

	return &domain.CapturedResponse{
		Status:  resp.StatusCode,
		Headers: headers,
		Data:    data,
	}
}

// truncate обрезает строку до указанной длины.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
