package mq

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// ErrNoPublisher — публикация запрошена без подключения к брокеру.
// Вызывающий код трактует это как сигнал положиться на polling.
var ErrNoPublisher = errors.New("publisher is not configured")

// MessageType — тип сообщения в очереди.
type MessageType string

// Типы сообщений.
const (
	MessageTypeDeploymentRequested MessageType = "deployment.requested"
	MessageTypeServiceApply        MessageType = "service.apply"
	MessageTypeServiceStatus       MessageType = "service.status"
)

// ApplyAction — действие для агента.
type ApplyAction string

// Действия.
const (
	ActionStart ApplyAction = "start"
	ActionStop  ApplyAction = "stop"

	// ActionTeardown — удалить оставшиеся ресурсы развёртывания
	// (сеть, тома, контейнеры) по метке. Отправляется после того,
	// как все сервисы остановлены; ServiceStateID не заполняется.
	ActionTeardown ApplyAction = "teardown"
)

// Publisher публикует сообщения в RabbitMQ.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Message — сообщение для публикации.
type Message struct {
	// ID — уникальный идентификатор сообщения.
	ID string `json:"id"`

	// Type — тип сообщения.
	Type MessageType `json:"type"`

	// Payload — полезная нагрузка.
	Payload any `json:"payload"`

	// Timestamp — время создания.
	Timestamp time.Time `json:"timestamp"`
}

// DeploymentRequestedPayload — payload для запроса развёртывания.
type DeploymentRequestedPayload struct {
	DeploymentID uuid.UUID `json:"deployment_id"`
}

// ServiceApplyPayload — команда агенту запустить или остановить сервис.
type ServiceApplyPayload struct {
	ServiceStateID uuid.UUID   `json:"service_state_id"`
	DeploymentID   uuid.UUID   `json:"deployment_id"`
	ServiceName    string      `json:"service_name"`
	Action         ApplyAction `json:"action"`
}

// ServiceStatusPayload — событие о смене статуса сервиса.
type ServiceStatusPayload struct {
	ServiceStateID uuid.UUID `json:"service_state_id"`
	DeploymentID   uuid.UUID `json:"deployment_id"`
	ServiceName    string    `json:"service_name"`
	Status         string    `json:"status"` // RUNNING, HEALTHY, COMPLETED, FAILED, STOPPED
	ContainerID    string    `json:"container_id,omitempty"`
	ExitCode       *int      `json:"exit_code,omitempty"`
	Error          string    `json:"error,omitempty"`
	Attempt        int       `json:"attempt"`
}

// Publish публикует сообщение в указанный exchange с routing key.
func (p *Publisher) Publish(ctx context.Context, exchange Exchange, routingKey RoutingKey, msg *Message) error {
	if p == nil {
		return ErrNoPublisher
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	return p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		err := ch.PublishWithContext(
			ctx,
			string(exchange),   // exchange
			string(routingKey), // routing key
			false,
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent, // сообщение переживёт рестарт RabbitMQ
				MessageId:    msg.ID,
				Timestamp:    msg.Timestamp,
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s/%s: %w", exchange, routingKey, err)
		}

		p.logger.Debug("published message",
			"exchange", exchange,
			"routing_key", routingKey,
			"message_id", msg.ID,
			"type", msg.Type,
		)

		return nil
	})
}

// PublishDeploymentRequested публикует запрос на развёртывание.
// Потребитель: Orchestrator.
func (p *Publisher) PublishDeploymentRequested(ctx context.Context, deploymentID uuid.UUID) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeDeploymentRequested,
		Payload:   DeploymentRequestedPayload{DeploymentID: deploymentID},
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeDeployments, RoutingKeyRequested, msg)
}

// PublishServiceApply публикует команду агенту.
// Потребитель: Agent.
func (p *Publisher) PublishServiceApply(ctx context.Context, payload ServiceApplyPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeServiceApply,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeServices, RoutingKeyApply, msg)
}

// PublishServiceStatus публикует событие о смене статуса сервиса.
// Потребитель: Orchestrator.
func (p *Publisher) PublishServiceStatus(ctx context.Context, payload ServiceStatusPayload) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      MessageTypeServiceStatus,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, ExchangeServices, RoutingKeyStatus, msg)
}

// PublishJSON публикует произвольный JSON payload.
func (p *Publisher) PublishJSON(ctx context.Context, exchange Exchange, routingKey RoutingKey, msgType MessageType, payload any) error {
	msg := &Message{
		ID:        uuid.New().String(),
		Type:      msgType,
		Payload:   payload,
		Timestamp: time.Now(),
	}

	return p.Publish(ctx, exchange, routingKey, msg)
}
