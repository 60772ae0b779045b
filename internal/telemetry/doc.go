// Package telemetry содержит инфраструктуру наблюдаемости:
// настройку структурированного логирования (log/slog) и
// передачу логгера через context.
package telemetry
