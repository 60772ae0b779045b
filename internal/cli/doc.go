// Package cli реализует инструмент командной строки Convoy.
//
// # Обзор
//
// CLI — клиентская утилита для взаимодействия с Convoy API.
// Работает через HTTP, не импортирует внутренние пакеты системы.
// CLI используется для управления stacks, deployments и schedules.
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для Convoy API. Инкапсулирует все HTTP-запросы,
// парсинг ответов (DataResponse, ListResponse, ErrorResponse)
// и обработку ошибок.
//
//	client := cli.NewClient("http://localhost:8080")
//	stacks, err := client.ListStacks()
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: convoy stack list --json | jq .
//
// ## Commands
//
// Cobra-команды организованы по ресурсам:
//   - stack: list, create, show, update, delete, versions, push
//   - deploy: list, start, show, stop, services
//   - schedule: list, create, show, update, delete, enable, disable
//
// Каждая группа создаётся через фабричную функцию (NewStackCmd и т.д.),
// принимающую clientFn и outputFn — замыкания для ленивого создания
// Client и Output после парсинга PersistentFlags.
package cli
