package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shaiso/Convoy/internal/domain"
	"github.com/shaiso/Convoy/internal/engine"
)

// ListStacks возвращает список всех stacks.
// GET /api/v1/stacks?name=NAME
func (h *Handler) ListStacks(w http.ResponseWriter, r *http.Request) {
	// Фильтр по точному имени
	if name := r.URL.Query().Get("name"); name != "" {
		stack, err := h.stackRepo.GetByName(r.Context(), name)
		if HandleRepoError(w, h.logger, err, "stack not found") {
			return
		}
		List(w, []StackResponse{StackFromDomain(*stack)}, 1)
		return
	}

	stacks, err := h.stackRepo.List(r.Context())
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]StackResponse, len(stacks))
	for i, s := range stacks {
		result[i] = StackFromDomain(s)
	}

	List(w, result, len(result))
}

// CreateStack создаёт новый stack.
// POST /api/v1/stacks
func (h *Handler) CreateStack(w http.ResponseWriter, r *http.Request) {
	var req CreateStackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	if req.Name == "" {
		BadRequest(w, "name is required")
		return
	}

	stack := &domain.Stack{
		ID:        uuid.New(),
		Name:      req.Name,
		IsActive:  false,
		CreatedAt: time.Now(),
	}

	if HandleRepoError(w, h.logger, h.stackRepo.Create(r.Context(), stack), "") {
		return
	}

	Created(w, StackFromDomain(*stack))
}

// GetStack возвращает stack по ID.
// GET /api/v1/stacks/{id}
func (h *Handler) GetStack(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid stack id")
		return
	}

	stack, err := h.stackRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "stack not found") {
		return
	}

	Success(w, StackFromDomain(*stack))
}

// UpdateStack обновляет stack.
// PUT /api/v1/stacks/{id}
func (h *Handler) UpdateStack(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid stack id")
		return
	}

	var req UpdateStackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		BadRequest(w, "invalid request body")
		return
	}

	stack, err := h.stackRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "stack not found") {
		return
	}

	if req.Name != nil {
		stack.Name = *req.Name
	}
	if req.IsActive != nil {
		stack.IsActive = *req.IsActive
	}

	if err := h.stackRepo.Update(r.Context(), stack); err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Success(w, StackFromDomain(*stack))
}

// DeleteStack удаляет stack.
// DELETE /api/v1/stacks/{id}
func (h *Handler) DeleteStack(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid stack id")
		return
	}

	if err := h.stackRepo.Delete(r.Context(), id); err != nil {
		if HandleRepoError(w, h.logger, err, "stack not found") {
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	NoContent(w)
}

// ListStackVersions возвращает список версий stack.
// GET /api/v1/stacks/{id}/versions
func (h *Handler) ListStackVersions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid stack id")
		return
	}

	// Проверяем, что stack существует
	_, err = h.stackRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "stack not found") {
		return
	}

	versions, err := h.stackRepo.ListVersions(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]StackVersionResponse, len(versions))
	for i, v := range versions {
		result[i] = StackVersionFromDomain(v)
	}

	List(w, result, len(result))
}

// CreateStackVersion создаёт новую версию stack.
// Дескриптор принимается как YAML (Content-Type: application/yaml)
// или как JSON ({"spec": {...}}). В обоих случаях дескриптор
// валидируется до записи в БД.
// POST /api/v1/stacks/{id}/versions
func (h *Handler) CreateStackVersion(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid stack id")
		return
	}

	// Проверяем, что stack существует
	_, err = h.stackRepo.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "stack not found") {
		return
	}

	spec, err := h.decodeSpec(r)
	if err != nil {
		InvalidSpec(w, err.Error())
		return
	}

	version, err := h.stackRepo.CreateVersion(r.Context(), id, *spec)
	if err != nil {
		InternalError(w, h.logger, err)
		return
	}

	Created(w, StackVersionFromDomain(*version))
}

// GetStackVersion возвращает конкретную версию stack.
// GET /api/v1/stacks/{id}/versions/{version}
func (h *Handler) GetStackVersion(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid stack id")
		return
	}

	versionNum, err := strconv.Atoi(r.PathValue("version"))
	if err != nil {
		BadRequest(w, "invalid version number")
		return
	}

	version, err := h.stackRepo.GetVersion(r.Context(), id, versionNum)
	if HandleRepoError(w, h.logger, err, "stack version not found") {
		return
	}

	Success(w, StackVersionFromDomain(*version))
}

// decodeSpec читает дескриптор stack из тела запроса.
func (h *Handler) decodeSpec(r *http.Request) (*domain.StackSpec, error) {
	contentType := r.Header.Get("Content-Type")

	if strings.Contains(contentType, "yaml") {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, err
		}
		return engine.ParseAndValidate(body)
	}

	var req CreateStackVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return nil, err
	}
	if err := engine.Validate(&req.Spec); err != nil {
		return nil, err
	}
	return &req.Spec, nil
}
