// Package health содержит проверки здоровья сервисов.
//
// Включает:
//   - probe.go     — интерфейс Probe и реестр типов проверок
//   - tcp.go       — проверка TCP-соединения
//   - http.go      — проверка HTTP-эндпоинта
//   - container.go — проверка health-статуса контейнера из движка
//   - prober.go    — цикл ожидания здоровья с бюджетом попыток
//
// Агент использует пакет для подтверждения готовности сервисов:
// зависимости с условием service_healthy открываются только после
// успешной проверки.
package health
