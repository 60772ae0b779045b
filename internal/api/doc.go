// Package api содержит HTTP API сервер.
//
// Структура:
//   - handler.go            — Handler с DI (репозитории, publisher, logger)
//   - routes.go             — регистрация маршрутов
//   - middleware.go         — middleware (logging, recovery)
//   - response.go           — унифицированные JSON-ответы и обработка ошибок
//   - dto.go                — Data Transfer Objects (request/response)
//   - stack_handler.go      — обработчики для /stacks и версий
//   - deployment_handler.go — обработчики для /deployments
//   - schedule_handler.go   — обработчики для /schedules
//
// API предоставляет REST endpoints для управления stacks, deployments
// и schedules. Дескриптор stack принимается как YAML (application/yaml)
// или как JSON.
package api
