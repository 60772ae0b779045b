package health

import (
	"context"
	"fmt"
	"net"
)

// ProbeTypeTCP — тип TCP проверки.
const ProbeTypeTCP = "tcp"

// TCPProbe — проверка TCP-соединения.
//
// Сервис считается здоровым, если соединение с целью (host:port)
// устанавливается. Используется для баз данных и брокеров, у которых
// нет HTTP-эндпоинта (mysql, redis, rabbitmq).
type TCPProbe struct {
	dialer *net.Dialer
}

// NewTCPProbe создаёт новую TCP проверку.
func NewTCPProbe() *TCPProbe {
	return &TCPProbe{
		dialer: &net.Dialer{},
	}
}

// Type возвращает тип проверки.
func (p *TCPProbe) Type() string {
	return ProbeTypeTCP
}

// Check устанавливает TCP-соединение с целью.
func (p *TCPProbe) Check(ctx context.Context, req *Request) error {
	conn, err := p.dialer.DialContext(ctx, "tcp", req.Target)
	if err != nil {
		return fmt.Errorf("%w: dial %s: %v", ErrProbeFailed, req.Target, err)
	}
	conn.Close()

	return nil
}
