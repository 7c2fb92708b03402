package cli

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// --- Response types (дублируются из api/dto.go, CLI не импортирует internal/api) ---

// NodeView — узел pipeline из API.
type NodeView struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Label  string         `json:"label,omitempty"`
	Status string         `json:"status"`
	Config map[string]any `json:"config,omitempty"`
}

// EdgeView — ребро pipeline из API.
type EdgeView struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// PipelineResponse — pipeline из API.
type PipelineResponse struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	UserID    string     `json:"user_id,omitempty"`
	Status    string     `json:"status"`
	Nodes     []NodeView `json:"nodes"`
	Edges     []EdgeView `json:"edges"`
	CreatedAt string     `json:"created_at"`
	UpdatedAt string     `json:"updated_at"`
}

// EntryView — запись журнала выполнения из API.
type EntryView struct {
	NodeID     string `json:"node_id"`
	Label      string `json:"label,omitempty"`
	Type       string `json:"type"`
	Status     string `json:"status"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Error      string `json:"error,omitempty"`
}

// SessionResponse — execution session из API.
type SessionResponse struct {
	ID         string      `json:"id"`
	PipelineID string      `json:"pipeline_id"`
	Status     string      `json:"status"`
	StartedAt  string      `json:"started_at"`
	FinishedAt string      `json:"finished_at,omitempty"`
	Entries    []EntryView `json:"entries"`
}

// ScheduleResponse — schedule из API.
type ScheduleResponse struct {
	ID          string `json:"id"`
	PipelineID  string `json:"pipeline_id"`
	Name        string `json:"name,omitempty"`
	CronExpr    string `json:"cron_expr,omitempty"`
	IntervalSec int    `json:"interval_sec,omitempty"`
	Timezone    string `json:"timezone"`
	Enabled     bool   `json:"enabled"`
	NextDueAt   string `json:"next_due_at,omitempty"`
	LastRunAt   string `json:"last_run_at,omitempty"`
	CreatedAt   string `json:"created_at"`
	UpdatedAt   string `json:"updated_at"`
}

// --- Request types ---

// AddNodeRequest — добавление узла.
type AddNodeRequest struct {
	ID     string         `json:"id"`
	Type   string         `json:"type"`
	Label  string         `json:"label,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

// UpdateNodeRequest — обновление узла.
type UpdateNodeRequest struct {
	Label  *string        `json:"label,omitempty"`
	Config map[string]any `json:"config,omitempty"`
}

// CreateScheduleRequest — создание schedule.
type CreateScheduleRequest struct {
	Name        string `json:"name"`
	CronExpr    string `json:"cron_expr,omitempty"`
	IntervalSec int    `json:"interval_sec,omitempty"`
	Timezone    string `json:"timezone,omitempty"`
	Enabled     bool   `json:"enabled"`
}

// UpdateScheduleRequest — обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string `json:"name,omitempty"`
	CronExpr    *string `json:"cron_expr,omitempty"`
	IntervalSec *int    `json:"interval_sec,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
}

// --- API response wrappers ---

type dataResponse struct {
	Data json.RawMessage `json:"data"`
}

type listResponse struct {
	Data  json.RawMessage `json:"data"`
	Total int             `json:"total"`
}

type errorResponse struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- Client ---

// Client — HTTP-клиент для Helix API.
type Client struct {
	baseURL    string
	userID     string
	httpClient *http.Client
}

// NewClient создаёт клиент для API. userID пустой — анонимная сессия.
func NewClient(baseURL, userID string) *Client {
	return &Client{
		baseURL: baseURL,
		userID:  userID,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Pipelines ---

// ListPipelines возвращает сохранённые pipelines.
func (c *Client) ListPipelines() ([]PipelineResponse, error) {
	var pipelines []PipelineResponse
	err := c.list("/api/v1/pipelines", nil, &pipelines)
	return pipelines, err
}

// CreatePipeline создаёт новый draft pipeline.
func (c *Client) CreatePipeline(name string) (*PipelineResponse, error) {
	body := map[string]string{"name": name}
	var p PipelineResponse
	err := c.post("/api/v1/pipelines", body, &p)
	return &p, err
}

// GetPipeline возвращает pipeline по ID.
func (c *Client) GetPipeline(id string) (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.get("/api/v1/pipelines/"+id, &p)
	return &p, err
}

// GetCurrentPipeline возвращает текущий pipeline пользователя.
func (c *Client) GetCurrentPipeline() (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.get("/api/v1/pipelines/current", &p)
	return &p, err
}

// SyncPipeline заменяет pipeline на сервере полным документом.
func (c *Client) SyncPipeline(id string, doc json.RawMessage) (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.put("/api/v1/pipelines/"+id, doc, &p)
	return &p, err
}

// RenamePipeline переименовывает pipeline.
func (c *Client) RenamePipeline(id, name string) error {
	body := map[string]string{"name": name}
	return c.patch("/api/v1/pipelines/"+id, body, nil)
}

// DeletePipeline удаляет pipeline.
func (c *Client) DeletePipeline(id string) error {
	return c.delete("/api/v1/pipelines/" + id)
}

// --- Graph editing ---

// AddNode добавляет узел в pipeline.
func (c *Client) AddNode(pipelineID string, req AddNodeRequest) (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.post("/api/v1/pipelines/"+pipelineID+"/nodes", req, &p)
	return &p, err
}

// UpdateNode обновляет узел.
func (c *Client) UpdateNode(pipelineID, nodeID string, req UpdateNodeRequest) (*PipelineResponse, error) {
	var p PipelineResponse
	err := c.patch("/api/v1/pipelines/"+pipelineID+"/nodes/"+nodeID, req, &p)
	return &p, err
}

// DeleteNode удаляет узел.
func (c *Client) DeleteNode(pipelineID, nodeID string) error {
	return c.delete("/api/v1/pipelines/" + pipelineID + "/nodes/" + nodeID)
}

// AddEdge добавляет ребро source → target.
func (c *Client) AddEdge(pipelineID, source, target string) (*PipelineResponse, error) {
	body := map[string]string{"source": source, "target": target}
	var p PipelineResponse
	err := c.post("/api/v1/pipelines/"+pipelineID+"/edges", body, &p)
	return &p, err
}

// DeleteEdge удаляет ребро source → target.
func (c *Client) DeleteEdge(pipelineID, source, target string) error {
	return c.delete("/api/v1/pipelines/" + pipelineID + "/edges/" + source + "/" + target)
}

// --- Executions ---

// StartExecution запускает выполнение pipeline.
func (c *Client) StartExecution(pipelineID string) (*SessionResponse, error) {
	var s SessionResponse
	err := c.post("/api/v1/pipelines/"+pipelineID+"/execute", nil, &s)
	return &s, err
}

// StopExecution останавливает выполнение pipeline.
func (c *Client) StopExecution(pipelineID string) error {
	return c.post("/api/v1/pipelines/"+pipelineID+"/stop", nil, nil)
}

// ExecuteNode перезапускает один узел.
func (c *Client) ExecuteNode(pipelineID, nodeID string) (*SessionResponse, error) {
	var s SessionResponse
	err := c.post("/api/v1/pipelines/"+pipelineID+"/nodes/"+nodeID+"/execute", nil, &s)
	return &s, err
}

// CurrentExecution возвращает текущую session.
func (c *Client) CurrentExecution(pipelineID string) (*SessionResponse, error) {
	var s SessionResponse
	err := c.get("/api/v1/pipelines/"+pipelineID+"/executions/current", &s)
	return &s, err
}

// ListExecutions возвращает историю executions.
func (c *Client) ListExecutions(pipelineID string, limit int) ([]SessionResponse, error) {
	params := url.Values{}
	if limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", limit))
	}

	var sessions []SessionResponse
	err := c.list("/api/v1/pipelines/"+pipelineID+"/executions", params, &sessions)
	return sessions, err
}

// --- Schedules ---

// ListSchedules возвращает schedules. Если pipelineID не пустой — фильтрует.
func (c *Client) ListSchedules(pipelineID string) ([]ScheduleResponse, error) {
	params := url.Values{}
	if pipelineID != "" {
		params.Set("pipeline_id", pipelineID)
	}

	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", params, &schedules)
	return schedules, err
}

// CreateSchedule создаёт schedule для pipeline.
func (c *Client) CreateSchedule(pipelineID string, req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/pipelines/"+pipelineID+"/schedules", req, &schedule)
	return &schedule, err
}

// GetSchedule возвращает schedule по ID.
func (c *Client) GetSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.get("/api/v1/schedules/"+id, &schedule)
	return &schedule, err
}

// UpdateSchedule обновляет schedule.
func (c *Client) UpdateSchedule(id string, req UpdateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.put("/api/v1/schedules/"+id, req, &schedule)
	return &schedule, err
}

// DeleteSchedule удаляет schedule.
func (c *Client) DeleteSchedule(id string) error {
	return c.delete("/api/v1/schedules/" + id)
}

// EnableSchedule включает schedule.
func (c *Client) EnableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": true}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// DisableSchedule выключает schedule.
func (c *Client) DisableSchedule(id string) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	body := map[string]bool{"enabled": false}
	err := c.put("/api/v1/schedules/"+id+"/enabled", body, &schedule)
	return &schedule, err
}

// --- HTTP helpers ---

func (c *Client) get(path string, result any) error {
	return c.doData(http.MethodGet, path, nil, result)
}

func (c *Client) post(path string, body any, result any) error {
	return c.doData(http.MethodPost, path, body, result)
}

func (c *Client) put(path string, body any, result any) error {
	return c.doData(http.MethodPut, path, body, result)
}

func (c *Client) patch(path string, body any, result any) error {
	return c.doData(http.MethodPatch, path, body, result)
}

func (c *Client) delete(path string) error {
	resp, err := c.do(http.MethodDelete, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return c.checkError(resp)
}

func (c *Client) list(path string, params url.Values, result any) error {
	if len(params) > 0 {
		path = path + "?" + params.Encode()
	}

	resp, err := c.do(http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	var lr listResponse
	if err := json.NewDecoder(resp.Body).Decode(&lr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return json.Unmarshal(lr.Data, result)
}

func (c *Client) doData(method, path string, body any, result any) error {
	resp, err := c.do(method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if err := c.checkError(resp); err != nil {
		return err
	}

	// 204 No Content
	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	var dr dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&dr); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if result != nil {
		return json.Unmarshal(dr.Data, result)
	}
	return nil
}

func (c *Client) do(method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.userID != "" {
		req.Header.Set("X-User-ID", c.userID)
	}

	return c.httpClient.Do(req)
}

func (c *Client) checkError(resp *http.Response) error {
	if resp.StatusCode < 400 {
		return nil
	}

	var er errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&er); err != nil {
		return fmt.Errorf("API error: HTTP %d", resp.StatusCode)
	}

	return fmt.Errorf("%s: %s", er.Error.Code, er.Error.Message)
}
