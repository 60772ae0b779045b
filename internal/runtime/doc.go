// Package runtime определяет абстракцию над движком контейнеров.
//
// Агент не зависит от конкретного движка: всё взаимодействие идёт
// через интерфейс Runtime. Реализация для Docker Engine API живёт
// в подпакете docker.
package runtime
