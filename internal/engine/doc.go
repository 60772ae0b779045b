// Package engine содержит движок планирования развёртываний.
//
// Включает:
//   - validate.go    — валидация StackSpec
//   - dag.go         — построение и обход DAG зависимостей сервисов
//   - interpolate.go — подстановка переменных ${VAR} в дескриптор
//
// Engine отвечает за понимание структуры stack и определение
// порядка запуска сервисов на основе их зависимостей и условий
// готовности (service_started, service_healthy,
// service_completed_successfully).
package engine
