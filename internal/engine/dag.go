package engine

import (
	"fmt"

	"github.com/shaiso/Convoy/internal/domain"
)

// Edge — входящее ребро зависимости с условием готовности.
type Edge struct {
	// From — узел, от которого зависим.
	From *Node

	// Condition — условие на ребре (service_started по умолчанию).
	Condition domain.GateCondition
}

// Node — узел в DAG.
type Node struct {
	// Service — определение сервиса из StackSpec.
	Service *domain.ServiceDef

	// Name — имя сервиса (дублирует Service.Name для удобства обхода).
	Name string

	// InDegree — количество входящих рёбер (зависимостей).
	InDegree int

	// DependsOn — входящие рёбра с условиями.
	DependsOn []Edge

	// Dependents — узлы, которые зависят от этого узла.
	Dependents []*Node
}

// DAG — направленный ациклический граф сервисов stack.
type DAG struct {
	// Nodes — все узлы графа (имя сервиса → Node).
	Nodes map[string]*Node

	// RootNodes — узлы без зависимостей (точки входа).
	RootNodes []*Node

	// Order — топологически отсортированный список узлов.
	Order []*Node
}

// BuildDAG строит DAG из StackSpec.
//
// Рёбра создаются из depends_on каждого сервиса; пустое условие
// на ребре трактуется как service_started.
func BuildDAG(spec *domain.StackSpec) (*DAG, error) {
	dag := &DAG{
		Nodes:     make(map[string]*Node),
		RootNodes: make([]*Node, 0),
	}

	// Первый проход: создаём все узлы
	for i := range spec.Services {
		svc := &spec.Services[i]
		dag.Nodes[svc.Name] = &Node{
			Service:    svc,
			Name:       svc.Name,
			DependsOn:  make([]Edge, 0),
			Dependents: make([]*Node, 0),
		}
	}

	// Второй проход: связываем узлы по зависимостям
	for i := range spec.Services {
		svc := &spec.Services[i]

		if err := dag.linkDependencies(svc); err != nil {
			return nil, err
		}
	}

	// Находим корневые узлы
	dag.findRootNodes()

	// Проверяем на циклы и строим топологический порядок
	order, err := dag.topologicalSort()
	if err != nil {
		return nil, err
	}
	dag.Order = order

	return dag, nil
}

// linkDependencies связывает узлы по depends_on сервиса.
func (d *DAG) linkDependencies(svc *domain.ServiceDef) error {
	node := d.Nodes[svc.Name]

	for _, dep := range svc.DependsOn {
		depNode, exists := d.Nodes[dep.Service]
		if !exists {
			return NewValidationError(svc.Name, "depends_on",
				fmt.Sprintf("depends on unknown service: %s", dep.Service), ErrMissingDependency)
		}

		cond := dep.Condition
		if cond == "" {
			cond = domain.ConditionStarted
		}

		d.addEdge(depNode, node, cond)
	}

	return nil
}

// addEdge добавляет ребро между узлами.
// Дополнительно проверяет на дубликаты, чтобы избежать двойного учета InDegree.
func (d *DAG) addEdge(from, to *Node, cond domain.GateCondition) {
	for _, edge := range to.DependsOn {
		if edge.From.Name == from.Name {
			return // уже связаны
		}
	}
	from.Dependents = append(from.Dependents, to)
	to.DependsOn = append(to.DependsOn, Edge{From: from, Condition: cond})
	to.InDegree++
}

// findRootNodes находит узлы без входящих рёбер.
func (d *DAG) findRootNodes() {
	d.RootNodes = make([]*Node, 0)
	for _, node := range d.Nodes {
		if node.InDegree == 0 {
			d.RootNodes = append(d.RootNodes, node)
		}
	}
}

// topologicalSort выполняет топологическую сортировку (алгоритм Кана).
// Возвращает ошибку, если обнаружен цикл.
func (d *DAG) topologicalSort() ([]*Node, error) {
	// Копируем inDegree, чтобы не модифицировать оригинал
	inDegree := make(map[string]int)
	for name, node := range d.Nodes {
		inDegree[name] = node.InDegree
	}

	// Очередь узлов с inDegree = 0
	queue := make([]*Node, len(d.RootNodes))
	copy(queue, d.RootNodes)

	order := make([]*Node, 0, len(d.Nodes))

	for len(queue) > 0 {
		// Извлекаем узел из очереди
		node := queue[0]
		queue = queue[1:]
		order = append(order, node)

		// Уменьшаем inDegree у зависимых узлов
		for _, dependent := range node.Dependents {
			inDegree[dependent.Name]--
			if inDegree[dependent.Name] == 0 {
				queue = append(queue, dependent)
			}
		}
	}

	// Если не все узлы обработаны — есть цикл
	if len(order) != len(d.Nodes) {
		return nil, ErrCyclicDependency
	}

	return order, nil
}

// GetReadyNodes возвращает сервисы, готовые к запуску.
//
// Сервис готов, если:
// - Сам он в статусе PENDING
// - Каждое входящее ребро удовлетворено текущим статусом зависимости
//
// statuses — map имя сервиса → текущий статус.
func (d *DAG) GetReadyNodes(statuses map[string]domain.ServiceStatus) []*Node {
	ready := make([]*Node, 0)

	for _, node := range d.Nodes {
		if statuses[node.Name] != domain.ServiceStatusPending {
			continue
		}

		allSatisfied := true
		for _, edge := range node.DependsOn {
			if !statuses[edge.From.Name].Satisfies(edge.Condition) {
				allSatisfied = false
				break
			}
		}

		if allSatisfied {
			ready = append(ready, node)
		}
	}

	return ready
}

// GetBlockedNodes возвращает сервисы, которые уже никогда не смогут
// стартовать: хотя бы одно входящее ребро ведёт к зависимости в
// тупиковом статусе (FAILED, STOPPED, либо COMPLETED при условии
// service_healthy).
func (d *DAG) GetBlockedNodes(statuses map[string]domain.ServiceStatus) []*Node {
	blocked := make([]*Node, 0)

	for _, node := range d.Nodes {
		if statuses[node.Name] != domain.ServiceStatusPending {
			continue
		}

		for _, edge := range node.DependsOn {
			if !statuses[edge.From.Name].CanEverSatisfy(edge.Condition) {
				blocked = append(blocked, node)
				break
			}
		}
	}

	return blocked
}

// GetTransitiveDependents возвращает все узлы, прямо или транзитивно
// зависящие от данного сервиса. Используется для каскадного
// проставления FAILED при отказе зависимости.
func (d *DAG) GetTransitiveDependents(name string) []*Node {
	start, exists := d.Nodes[name]
	if !exists {
		return nil
	}

	visited := make(map[string]bool)
	result := make([]*Node, 0)

	queue := make([]*Node, 0, len(start.Dependents))
	queue = append(queue, start.Dependents...)

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		if visited[node.Name] {
			continue
		}
		visited[node.Name] = true

		result = append(result, node)
		queue = append(queue, node.Dependents...)
	}

	return result
}

// StartOrder возвращает имена сервисов в топологическом порядке запуска.
func (d *DAG) StartOrder() []string {
	names := make([]string, 0, len(d.Order))
	for _, node := range d.Order {
		names = append(names, node.Name)
	}
	return names
}

// StopOrder возвращает имена сервисов в обратном топологическом
// порядке: зависимые останавливаются раньше своих зависимостей.
func (d *DAG) StopOrder() []string {
	names := make([]string, 0, len(d.Order))
	for i := len(d.Order) - 1; i >= 0; i-- {
		names = append(names, d.Order[i].Name)
	}
	return names
}

// GetNode возвращает узел по имени сервиса.
func (d *DAG) GetNode(name string) *Node {
	return d.Nodes[name]
}

// Size возвращает количество узлов в DAG.
func (d *DAG) Size() int {
	return len(d.Nodes)
}

// IsSettled проверяет, достигли ли все сервисы устойчивого или
// терминального состояния.
func (d *DAG) IsSettled(statuses map[string]domain.ServiceStatus) bool {
	for _, node := range d.Nodes {
		if !statuses[node.Name].IsSettled() {
			return false
		}
	}
	return true
}
