package health

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// ProbeTypeHTTP — тип HTTP проверки.
const ProbeTypeHTTP = "http"

// HTTPProbe — проверка HTTP-эндпоинта.
//
// Сервис считается здоровым, если GET запрос к цели возвращает
// статус 2xx или 3xx.
type HTTPProbe struct {
	client *http.Client
}

// NewHTTPProbe создаёт новую HTTP проверку.
func NewHTTPProbe() *HTTPProbe {
	return &HTTPProbe{
		// Таймаут попытки приходит через контекст
		client: &http.Client{},
	}
}

// Type возвращает тип проверки.
func (p *HTTPProbe) Type() string {
	return ProbeTypeHTTP
}

// Check выполняет GET запрос к цели.
func (p *HTTPProbe) Check(ctx context.Context, req *Request) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.Target, nil)
	if err != nil {
		return fmt.Errorf("%w: build request for %s: %v", ErrProbeFailed, req.Target, err)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: GET %s: %v", ErrProbeFailed, req.Target, err)
	}
	defer resp.Body.Close()

	// Вычитываем тело, чтобы соединение вернулось в пул
	io.Copy(io.Discard, io.LimitReader(resp.Body, 4096)) //nolint:errcheck

	if resp.StatusCode >= 400 {
		return fmt.Errorf("%w: GET %s: status %d", ErrProbeFailed, req.Target, resp.StatusCode)
	}

	return nil
}
