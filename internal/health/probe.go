package health

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Ошибки проверок здоровья.
var (
	// ErrProbeNotFound — тип проверки не найден в реестре.
	ErrProbeNotFound = errors.New("probe type not found")

	// ErrProbeFailed — одна попытка проверки не прошла.
	ErrProbeFailed = errors.New("probe failed")

	// ErrBudgetExhausted — бюджет попыток исчерпан.
	ErrBudgetExhausted = errors.New("health check retry budget exhausted")

	// ErrProbeCancelled — ожидание здоровья отменено.
	ErrProbeCancelled = errors.New("health check cancelled")
)

// Request — входные данные одной попытки проверки.
type Request struct {
	// Service — имя проверяемого сервиса (для логов и ошибок).
	Service string

	// Target — цель проверки (host:port для tcp, URL для http).
	Target string

	// ContainerID — контейнер сервиса (для container-проверок).
	ContainerID string
}

// Probe — интерфейс одного типа проверки здоровья.
//
// Check выполняет ровно одну попытку. Таймаут попытки задаётся
// через контекст вызывающей стороной (Prober).
type Probe interface {
	// Type возвращает тип проверки.
	Type() string

	// Check выполняет одну попытку. nil — сервис здоров.
	Check(ctx context.Context, req *Request) error
}

// Registry — реестр типов проверок здоровья.
//
// Позволяет регистрировать и получать реализации Probe по типу.
// Потокобезопасен.
type Registry struct {
	mu     sync.RWMutex
	probes map[string]Probe
}

// NewRegistry создаёт пустой реестр.
func NewRegistry() *Registry {
	return &Registry{
		probes: make(map[string]Probe),
	}
}

// DefaultRegistry создаёт реестр со всеми стандартными проверками.
//
// src — источник health-статусов контейнеров для container-проверок.
func DefaultRegistry(src ContainerHealthSource) *Registry {
	r := NewRegistry()

	r.Register(NewTCPProbe())
	r.Register(NewHTTPProbe())
	r.Register(NewContainerProbe(src))

	return r
}

// Register регистрирует проверку в реестре.
// Если проверка с таким типом уже существует, она будет перезаписана.
func (r *Registry) Register(probe Probe) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.probes[probe.Type()] = probe
}

// Get возвращает проверку по типу.
// Возвращает ErrProbeNotFound, если проверка не найдена.
func (r *Registry) Get(probeType string) (Probe, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	probe, exists := r.probes[probeType]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrProbeNotFound, probeType)
	}

	return probe, nil
}

// Has проверяет, зарегистрирована ли проверка.
func (r *Registry) Has(probeType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, exists := r.probes[probeType]
	return exists
}

// Types возвращает список всех зарегистрированных типов проверок.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	types := make([]string, 0, len(r.probes))
	for t := range r.probes {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
