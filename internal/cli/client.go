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

// StackResponse — stack из API.
type StackResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	IsActive  bool   `json:"is_active"`
	CreatedAt string `json:"created_at"`
}

// StackVersionResponse — версия stack из API.
type StackVersionResponse struct {
	StackID   string         `json:"stack_id"`
	Version   int            `json:"version"`
	Spec      map[string]any `json:"spec"`
	CreatedAt string         `json:"created_at"`
}

// DeploymentResponse — развёртывание из API.
type DeploymentResponse struct {
	ID             string            `json:"id"`
	StackID        string            `json:"stack_id"`
	Version        int               `json:"version"`
	Status         string            `json:"status"`
	Inputs         map[string]string `json:"inputs,omitempty"`
	StartedAt      string            `json:"started_at,omitempty"`
	FinishedAt     string            `json:"finished_at,omitempty"`
	Error          string            `json:"error,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
	CreatedAt      string            `json:"created_at"`
}

// ServiceStateResponse — состояние сервиса развёртывания из API.
type ServiceStateResponse struct {
	ID           string `json:"id"`
	DeploymentID string `json:"deployment_id"`
	ServiceName  string `json:"service_name"`
	Status       string `json:"status"`
	ContainerID  string `json:"container_id,omitempty"`
	ExitCode     *int   `json:"exit_code,omitempty"`
	Attempt      int    `json:"attempt"`
	Error        string `json:"error,omitempty"`
	StartedAt    string `json:"started_at,omitempty"`
	FinishedAt   string `json:"finished_at,omitempty"`
	CreatedAt    string `json:"created_at"`
}

// ScheduleResponse — schedule из API.
type ScheduleResponse struct {
	ID               string            `json:"id"`
	StackID          string            `json:"stack_id"`
	Name             string            `json:"name"`
	CronExpr         string            `json:"cron_expr,omitempty"`
	IntervalSec      int               `json:"interval_sec,omitempty"`
	Timezone         string            `json:"timezone"`
	Enabled          bool              `json:"enabled"`
	NextDueAt        string            `json:"next_due_at,omitempty"`
	LastRunAt        string            `json:"last_run_at,omitempty"`
	LastDeploymentID string            `json:"last_deployment_id,omitempty"`
	Inputs           map[string]string `json:"inputs,omitempty"`
	CreatedAt        string            `json:"created_at"`
	UpdatedAt        string            `json:"updated_at"`
}

// --- Request types ---

// UpdateStackRequest — обновление stack.
type UpdateStackRequest struct {
	Name     *string `json:"name,omitempty"`
	IsActive *bool   `json:"is_active,omitempty"`
}

// CreateDeploymentRequest — создание развёртывания.
type CreateDeploymentRequest struct {
	Inputs         map[string]string `json:"inputs,omitempty"`
	Version        *int              `json:"version,omitempty"`
	IdempotencyKey string            `json:"idempotency_key,omitempty"`
}

// CreateScheduleRequest — создание schedule.
type CreateScheduleRequest struct {
	Name        string            `json:"name"`
	CronExpr    string            `json:"cron_expr,omitempty"`
	IntervalSec int               `json:"interval_sec,omitempty"`
	Timezone    string            `json:"timezone,omitempty"`
	Enabled     bool              `json:"enabled"`
	Inputs      map[string]string `json:"inputs,omitempty"`
}

// UpdateScheduleRequest — обновление schedule.
type UpdateScheduleRequest struct {
	Name        *string `json:"name,omitempty"`
	CronExpr    *string `json:"cron_expr,omitempty"`
	IntervalSec *int    `json:"interval_sec,omitempty"`
	Timezone    *string `json:"timezone,omitempty"`
}

// ListDeploymentsOpts — параметры фильтрации развёртываний.
type ListDeploymentsOpts struct {
	StackID string
	Status  string
	Limit   int
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

// Client — HTTP-клиент для Convoy API.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient создаёт клиент для API.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// --- Stacks ---

// ListStacks возвращает все stacks.
func (c *Client) ListStacks() ([]StackResponse, error) {
	var stacks []StackResponse
	err := c.list("/api/v1/stacks", nil, &stacks)
	return stacks, err
}

// CreateStack создаёт новый stack.
func (c *Client) CreateStack(name string) (*StackResponse, error) {
	body := map[string]string{"name": name}
	var stack StackResponse
	err := c.post("/api/v1/stacks", body, &stack)
	return &stack, err
}

// GetStack возвращает stack по ID.
func (c *Client) GetStack(id string) (*StackResponse, error) {
	var stack StackResponse
	err := c.get("/api/v1/stacks/"+id, &stack)
	return &stack, err
}

// UpdateStack обновляет stack.
func (c *Client) UpdateStack(id string, req UpdateStackRequest) (*StackResponse, error) {
	var stack StackResponse
	err := c.put("/api/v1/stacks/"+id, req, &stack)
	return &stack, err
}

// DeleteStack удаляет stack.
func (c *Client) DeleteStack(id string) error {
	return c.delete("/api/v1/stacks/" + id)
}

// ListVersions возвращает версии stack.
func (c *Client) ListVersions(stackID string) ([]StackVersionResponse, error) {
	var versions []StackVersionResponse
	err := c.list("/api/v1/stacks/"+stackID+"/versions", nil, &versions)
	return versions, err
}

// PushVersion создаёт новую версию stack из YAML-дескриптора.
func (c *Client) PushVersion(stackID string, yamlSpec []byte) (*StackVersionResponse, error) {
	var version StackVersionResponse
	err := c.postRaw("/api/v1/stacks/"+stackID+"/versions", yamlSpec, "application/yaml", &version)
	return &version, err
}

// --- Deployments ---

// ListDeployments возвращает список развёртываний с фильтрацией.
func (c *Client) ListDeployments(opts ListDeploymentsOpts) ([]DeploymentResponse, error) {
	params := url.Values{}
	if opts.StackID != "" {
		params.Set("stack_id", opts.StackID)
	}
	if opts.Status != "" {
		params.Set("status", opts.Status)
	}
	if opts.Limit > 0 {
		params.Set("limit", fmt.Sprintf("%d", opts.Limit))
	}

	var deployments []DeploymentResponse
	err := c.list("/api/v1/deployments", params, &deployments)
	return deployments, err
}

// CreateDeployment создаёт развёртывание для stack.
func (c *Client) CreateDeployment(stackID string, req CreateDeploymentRequest) (*DeploymentResponse, error) {
	var deployment DeploymentResponse
	err := c.post("/api/v1/stacks/"+stackID+"/deployments", req, &deployment)
	return &deployment, err
}

// GetDeployment возвращает развёртывание по ID.
func (c *Client) GetDeployment(id string) (*DeploymentResponse, error) {
	var deployment DeploymentResponse
	err := c.get("/api/v1/deployments/"+id, &deployment)
	return &deployment, err
}

// StopDeployment запрашивает остановку развёртывания.
func (c *Client) StopDeployment(id string) (*DeploymentResponse, error) {
	var deployment DeploymentResponse
	err := c.post("/api/v1/deployments/"+id+"/stop", nil, &deployment)
	return &deployment, err
}

// ListServices возвращает состояния сервисов развёртывания.
func (c *Client) ListServices(deploymentID string) ([]ServiceStateResponse, error) {
	var states []ServiceStateResponse
	err := c.list("/api/v1/deployments/"+deploymentID+"/services", nil, &states)
	return states, err
}

// --- Schedules ---

// ListSchedules возвращает schedules. Если stackID не пустой — фильтрует.
func (c *Client) ListSchedules(stackID string) ([]ScheduleResponse, error) {
	params := url.Values{}
	if stackID != "" {
		params.Set("stack_id", stackID)
	}

	var schedules []ScheduleResponse
	err := c.list("/api/v1/schedules", params, &schedules)
	return schedules, err
}

// CreateSchedule создаёт schedule для stack.
func (c *Client) CreateSchedule(stackID string, req CreateScheduleRequest) (*ScheduleResponse, error) {
	var schedule ScheduleResponse
	err := c.post("/api/v1/stacks/"+stackID+"/schedules", req, &schedule)
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

	return c.decodeData(resp, result)
}

// postRaw отправляет тело как есть с указанным Content-Type.
func (c *Client) postRaw(path string, body []byte, contentType string, result any) error {
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return c.decodeData(resp, result)
}

func (c *Client) decodeData(resp *http.Response, result any) error {
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
