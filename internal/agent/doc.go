// Package agent выполняет команды запуска и остановки сервисов.
//
// Agent — это "руки" системы, работающие с движком контейнеров:
//   - Получает команды из очереди services.apply
//   - Создаёт тома и сети развёртывания
//   - Создаёт и запускает контейнеры сервисов
//   - Ждёт прохождения health-check с бюджетом попыток
//   - Дожидается завершения oneshot-сервисов
//   - Перезапускает упавшие сервисы согласно политике restart
//   - Публикует события смены статусов в services.status
//
// Политика перезапуска движка контейнеров всегда отключена:
// перезапусками управляет агент, чтобы каждая попытка проходила
// полный цикл health-check и была видна оркестратору.
//
// Agents масштабируются горизонтально — несколько экземпляров
// могут потреблять из одной очереди.
package agent
