// Package orchestrator управляет жизненным циклом развёртываний.
//
// Orchestrator отвечает за:
//   - Получение запросов на развёртывание из очереди RabbitMQ
//   - Валидацию дескриптора и построение DAG сервисов
//   - Отправку команд запуска агенту в порядке зависимостей
//   - Health-gating: зависимый сервис стартует только когда условия
//     на входящих рёбрах (started/healthy/completed) выполнены
//   - Каскадный отказ зависимой цепочки при падении сервиса
//   - Финализацию развёртывания (RUNNING/FAILED) и дальнейшее
//     отслеживание деградации
//   - Остановку развёртывания в обратном топологическом порядке
//
// Orchestrator — это "мозг" системы, который координирует запуск.
package orchestrator
