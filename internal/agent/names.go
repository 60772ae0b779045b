package agent

import (
	"fmt"

	"github.com/google/uuid"
)

// Метки, которыми агент помечает все ресурсы развёртывания.
// По метке deployment ресурсы находятся и удаляются целиком.
const (
	LabelDeployment = "convoy.deployment"
	LabelStack      = "convoy.stack"
	LabelService    = "convoy.service"
)

// shortID возвращает первые 8 символов UUID для имён ресурсов.
func shortID(id uuid.UUID) string {
	return id.String()[:8]
}

// ContainerName возвращает имя контейнера сервиса в рамках развёртывания.
func ContainerName(deploymentID uuid.UUID, service string) string {
	return fmt.Sprintf("convoy-%s-%s", shortID(deploymentID), service)
}

// NetworkName возвращает имя общей сети развёртывания.
// Все сервисы развёртывания подключаются к одной сети и видят
// друг друга по сетевым алиасам (именам сервисов).
func NetworkName(deploymentID uuid.UUID) string {
	return fmt.Sprintf("convoy-%s", shortID(deploymentID))
}

// VolumeName возвращает имя тома развёртывания.
func VolumeName(deploymentID uuid.UUID, volume string) string {
	return fmt.Sprintf("convoy-%s-%s", shortID(deploymentID), volume)
}

// resourceLabels возвращает метки для ресурсов развёртывания.
func resourceLabels(deploymentID, stackID uuid.UUID, service string) map[string]string {
	labels := map[string]string{
		LabelDeployment: deploymentID.String(),
		LabelStack:      stackID.String(),
	}
	if service != "" {
		labels[LabelService] = service
	}
	return labels
}
