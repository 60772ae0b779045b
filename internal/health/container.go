package health

import (
	"context"
	"fmt"
)

// ProbeTypeContainer — тип container проверки.
const ProbeTypeContainer = "container"

// ContainerHealthSource — источник health-статуса контейнера.
//
// Реализуется рантаймом контейнеров: статус берётся из встроенного
// HEALTHCHECK образа через inspect.
type ContainerHealthSource interface {
	// ContainerHealthy возвращает true, если контейнер здоров.
	// Ошибка означает, что статус получить не удалось (контейнер
	// отсутствует или у образа нет HEALTHCHECK).
	ContainerHealthy(ctx context.Context, containerID string) (bool, error)
}

// ContainerProbe — проверка по health-статусу контейнера из движка.
//
// Используется для образов со встроенным HEALTHCHECK (например,
// официальный образ grafana): движок сам выполняет проверку, а probe
// только читает её результат.
type ContainerProbe struct {
	src ContainerHealthSource
}

// NewContainerProbe создаёт новую container проверку.
func NewContainerProbe(src ContainerHealthSource) *ContainerProbe {
	return &ContainerProbe{src: src}
}

// Type возвращает тип проверки.
func (p *ContainerProbe) Type() string {
	return ProbeTypeContainer
}

// Check читает health-статус контейнера.
func (p *ContainerProbe) Check(ctx context.Context, req *Request) error {
	if req.ContainerID == "" {
		return fmt.Errorf("%w: service %s has no container", ErrProbeFailed, req.Service)
	}

	healthy, err := p.src.ContainerHealthy(ctx, req.ContainerID)
	if err != nil {
		return fmt.Errorf("%w: inspect %s: %v", ErrProbeFailed, req.ContainerID, err)
	}
	if !healthy {
		return fmt.Errorf("%w: container %s not healthy yet", ErrProbeFailed, req.ContainerID)
	}

	return nil
}
