package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Convoy/internal/domain"
	"github.com/shaiso/Convoy/internal/repo"
)

// ListDeployments возвращает список развёртываний с фильтрацией.
// GET /api/v1/deployments?stack_id=...&status=...&limit=...&offset=...
func (h *Handler) ListDeployments(w http.ResponseWriter, r *http.Request) {
	filter := repo.DeploymentFilter{}

	// Парсим query параметры
	if stackIDStr := r.URL.Query().Get("stack_id"); stackIDStr != "" {
		stackID, err := uuid.Parse(stackIDStr)
		if err != nil {
			BadRequest(w, "invalid stack_id")
			return
		}
		filter.StackID = &stackID
	}

	if status := r.URL.Query().Get("status"); status != "" {
		filter.Status = domain.DeploymentStatus(status)
	}

	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		filter.Limit = int(mustParseInt(limitStr, 50))
	} else {
		filter.Limit = 50
	}

	if offsetStr := r.URL.Query().Get("offset"); offsetStr != "" {
		filter.Offset = int(mustParseInt(offsetStr, 0))
	}

	deployments, err := h.deployRepo.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]DeploymentResponse, len(deployments))
	for i, d := range deployments {
		result[i] = DeploymentFromDomain(d)
	}

	List(w, result, len(result))
}

// CreateDeployment создаёт новое развёртывание stack.
// POST /api/v1/stacks/{id}/deployments
func (h *Handler) CreateDeployment(w http.ResponseWriter, r *http.Request) {
	stackID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid stack id")
		return
	}

	var req CreateDeploymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	// Проверяем, что stack существует
	stack, err := h.stackRepo.GetByID(r.Context(), stackID)
	if HandleRepoError(w, h.logger, err, "stack not found") {
		return
	}

	// Определяем версию
	var version int
	if req.Version != nil {
		version = *req.Version
		// Проверяем, что версия существует
		_, err := h.stackRepo.GetVersion(r.Context(), stackID, version)
		if HandleRepoError(w, h.logger, err, "stack version not found") {
			return
		}
	} else {
		// Используем последнюю версию
		latestVersion, err := h.stackRepo.GetLatestVersion(r.Context(), stackID)
		if HandleRepoError(w, h.logger, err, "stack has no versions") {
			return
		}
		version = latestVersion.Version
	}

	// Проверяем idempotency key
	if req.IdempotencyKey != "" {
		existing, err := h.deployRepo.GetByIdempotencyKey(r.Context(), stackID, req.IdempotencyKey)
		if err == nil && existing != nil {
			// Возвращаем существующее развёртывание
			Success(w, DeploymentFromDomain(*existing))
			return
		}
	}

	deployment := &domain.Deployment{
		ID:             uuid.New(),
		StackID:        stack.ID,
		Version:        version,
		Status:         domain.DeploymentStatusPending,
		Inputs:         req.Inputs,
		IdempotencyKey: req.IdempotencyKey,
		CreatedAt:      time.Now(),
	}

	if err := h.deployRepo.Create(r.Context(), deployment); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	// Публикуем событие в очередь
	if h.publisher != nil {
		if err := h.publisher.PublishDeploymentRequested(r.Context(), deployment.ID); err != nil {
			h.logger.Warn("failed to publish deployment.requested",
				"deployment_id", deployment.ID, "error", err)
		}
	}

	Created(w, DeploymentFromDomain(*deployment))
}

// GetDeployment возвращает развёртывание по ID.
// GET /api/v1/deployments/{id}
func (h *Handler) GetDeployment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid deployment id")
		return
	}

	deployment, err := h.deployRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "deployment not found") {
		return
	}

	Success(w, DeploymentFromDomain(*deployment))
}

// StopDeployment запрашивает остановку развёртывания.
// Развёртывание переводится в STOPPING; оркестратор подхватывает его
// и останавливает сервисы в порядке, обратном порядку запуска.
// POST /api/v1/deployments/{id}/stop
func (h *Handler) StopDeployment(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid deployment id")
		return
	}

	deployment, err := h.deployRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "deployment not found") {
		return
	}

	if deployment.IsFinished() {
		InvalidState(w, "deployment is already finished")
		return
	}

	if deployment.Status == domain.DeploymentStatusStopping {
		// Остановка уже запрошена
		Success(w, DeploymentFromDomain(*deployment))
		return
	}

	deployment.MarkStopping()

	if err := h.deployRepo.Update(r.Context(), deployment); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, DeploymentFromDomain(*deployment))
}

// ListDeploymentServices возвращает состояния сервисов развёртывания.
// GET /api/v1/deployments/{id}/services
func (h *Handler) ListDeploymentServices(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid deployment id")
		return
	}

	// Проверяем, что развёртывание существует
	_, err = h.deployRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "deployment not found") {
		return
	}

	states, err := h.serviceRepo.ListByDeployment(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ServiceStateResponse, len(states))
	for i, s := range states {
		result[i] = ServiceStateFromDomain(s)
	}

	List(w, result, len(result))
}

// mustParseInt парсит строку в int с дефолтным значением.
func mustParseInt(s string, defaultVal int64) int64 {
	var n int64
	if _, err := json.Number(s).Int64(); err == nil {
		n, _ = json.Number(s).Int64()
		return n
	}
	return defaultVal
}
