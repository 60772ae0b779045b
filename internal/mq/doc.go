// Package mq содержит инфраструктуру обмена сообщениями через RabbitMQ.
//
// Включает:
//   - connection.go — соединение с автоматическим reconnect
//   - topology.go   — объявление обменников, очередей и привязок
//   - publisher.go  — публикация событий развёртываний и сервисов
//   - consumer.go   — потребление сообщений с ack/nack и DLQ
//
// Через очереди общаются оркестратор и агенты: оркестратор отправляет
// команды запуска/остановки сервисов, агенты отвечают событиями
// о смене статусов.
package mq
