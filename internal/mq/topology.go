package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Exchange — тип для имени обменника.
type Exchange string

// Queue — тип для имени очереди.
type Queue string

// RoutingKey — тип для ключа маршрутизации.
type RoutingKey string

// Exchanges — имена обменников.
const (
	ExchangeDeployments Exchange = "convoy.deployments"
	ExchangeServices    Exchange = "convoy.services"
	ExchangeDLQ         Exchange = "convoy.dlq"
)

// Queues — имена очередей.
const (
	QueueDeploymentsRequested Queue = "deployments.requested"
	QueueServicesApply        Queue = "services.apply"
	QueueServicesStatus       Queue = "services.status"
	QueueDLQServices          Queue = "dlq.services"
)

// Routing keys.
const (
	RoutingKeyRequested   RoutingKey = "requested"
	RoutingKeyApply       RoutingKey = "apply"
	RoutingKeyStatus      RoutingKey = "status"
	RoutingKeyDLQServices RoutingKey = "services"
)

func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		// 1. Создаём exchanges
		if err := declareExchanges(ch); err != nil {
			return err
		}

		// 2. Создаём queues
		if err := declareQueues(ch); err != nil {
			return err
		}

		// 3. Привязываем queues к exchanges
		if err := bindQueues(ch); err != nil {
			return err
		}

		return nil
	})
}

// declareExchanges создаёт обменники.
func declareExchanges(ch *amqp.Channel) error {
	exchanges := []struct {
		name Exchange
		kind string
	}{
		{ExchangeDeployments, "direct"},
		{ExchangeServices, "direct"},
		{ExchangeDLQ, "direct"},
	}

	for _, ex := range exchanges {
		err := ch.ExchangeDeclare(
			string(ex.name), // name
			ex.kind,         // type
			true,            // durable
			false,           // auto-deleted
			false,           // internal
			false,           // no-wait
			nil,             // arguments
		)
		if err != nil {
			return fmt.Errorf("declare exchange %s: %w", ex.name, err)
		}
	}

	return nil
}

// declareQueues создаёт очереди.
func declareQueues(ch *amqp.Channel) error {
	// Аргументы для очередей с DLQ
	dlqArgs := amqp.Table{
		"x-dead-letter-exchange":    string(ExchangeDLQ),
		"x-dead-letter-routing-key": string(RoutingKeyDLQServices),
	}

	queues := []struct {
		name Queue
		args amqp.Table
	}{
		// deployments.requested — без DLQ (развёртывание запускается один раз)
		{QueueDeploymentsRequested, nil},

		// services.apply — с DLQ (команды агенту могут уходить в DLQ после retry)
		{QueueServicesApply, dlqArgs},

		// services.status — без DLQ (события смены статусов)
		{QueueServicesStatus, nil},

		// dlq.services — сама DLQ очередь
		{QueueDLQServices, nil},
	}

	for _, q := range queues {
		_, err := ch.QueueDeclare(
			string(q.name), // name
			true,           // durable
			false,          // delete when unused
			false,          // exclusive
			false,          // no-wait
			q.args,         // arguments
		)
		if err != nil {
			return fmt.Errorf("declare queue %s: %w", q.name, err)
		}
	}

	return nil
}

// bindQueues привязывает очереди к обменникам.
func bindQueues(ch *amqp.Channel) error {
	bindings := []struct {
		queue      Queue
		routingKey RoutingKey
		exchange   Exchange
	}{
		{QueueDeploymentsRequested, RoutingKeyRequested, ExchangeDeployments},
		{QueueServicesApply, RoutingKeyApply, ExchangeServices},
		{QueueServicesStatus, RoutingKeyStatus, ExchangeServices},
		{QueueDLQServices, RoutingKeyDLQServices, ExchangeDLQ},
	}

	for _, b := range bindings {
		err := ch.QueueBind(
			string(b.queue),      // queue name
			string(b.routingKey), // routing key
			string(b.exchange),   // exchange
			false,                // no-wait
			nil,                  // arguments
		)
		if err != nil {
			return fmt.Errorf("bind queue %s to %s: %w", b.queue, b.exchange, err)
		}
	}

	return nil
}

// TopologyInfo возвращает описание топологии для логирования.
func TopologyInfo() string {
	return `
  Convoy RabbitMQ Topology:

    convoy.deployments (direct)
    └── deployments.requested [routing: requested]
            Consumer: Orchestrator

    convoy.services (direct)
    ├── services.apply [routing: apply]
    │       Consumer: Agent
    │       DLQ: dlq.services
    └── services.status [routing: status]
            Consumer: Orchestrator

    convoy.dlq (direct)
    └── dlq.services [routing: services]
            Manual processing
  `
}
