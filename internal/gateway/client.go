package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
)

// apiClient performs the outbound provider calls for an adapter. Every call
// carries a bounded timeout; deadline failures surface as CodeTimeout so
// callers can apply their own retry policy. The gateway never retries.
type apiClient struct {
	provider string
	baseURL  string
	apiKey   string
	client   HTTPDoer
	timeout  time.Duration
}

func (c apiClient) do(ctx context.Context, method, path, contentType string, body io.Reader, paymentID string) (int, []byte, error) {
	ctx, span := otel.Tracer("gateway").Start(ctx, c.provider+".call")
	defer span.End()
	span.SetAttributes(
		attribute.String("payment.provider", c.provider),
		attribute.String("http.method", method),
		attribute.String("http.path", path),
	)

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, method, strings.TrimRight(c.baseURL, "/")+path, body)
	if err != nil {
		return 0, nil, transportErr(c.provider, paymentID, err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		span.RecordError(err)
		if errors.Is(err, context.DeadlineExceeded) || callCtx.Err() == context.DeadlineExceeded {
			return 0, nil, timeoutErr(c.provider, paymentID, err)
		}
		return 0, nil, transportErr(c.provider, paymentID, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		span.RecordError(err)
		return 0, nil, transportErr(c.provider, paymentID, err)
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))
	return resp.StatusCode, data, nil
}
