package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/obadahasan/numbot/internal/logger"
)

const (
	defaultDialTimeout     = 5 * time.Second
	defaultClientTimeout   = 10 * time.Second
	defaultIdleConnTimeout = 30 * time.Second
)

// HTTP queries a real verification provider. The provider is expected to
// answer GET {base}/deliveries/{correlationID} with
// {"delivered": bool, "code": "..."}.
type HTTP struct {
	base   string
	client *http.Client
}

// NewHTTP builds an HTTP oracle against the given base URL. client may be
// nil, in which case a tuned default is used.
func NewHTTP(base string, client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{
			Timeout: defaultClientTimeout,
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				DialContext:         (&net.Dialer{Timeout: defaultDialTimeout}).DialContext,
				ForceAttemptHTTP2:   true,
				MaxIdleConnsPerHost: 4,
				IdleConnTimeout:     defaultIdleConnTimeout,
			},
		}
	}
	return &HTTP{base: base, client: client}
}

type deliveryResponse struct {
	Delivered bool   `json:"delivered"`
	Code      string `json:"code"`
}

// CheckDelivery performs the remote lookup. Transport and decode failures
// are returned as errors; the caller maps them to "no code yet".
func (h *HTTP) CheckDelivery(ctx context.Context, correlationID string) (string, error) {
	endpoint := fmt.Sprintf("%s/deliveries/%s", h.base, url.PathEscape(correlationID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("oracle request: %w", err)
	}

	start := time.Now()
	resp, err := h.client.Do(req)
	if err != nil {
		logger.ORACLE.Warn("lookup failed",
			slog.String("event", "oracle.check"),
			slog.String("correlation_id", correlationID),
			slog.Duration("duration", logger.Took(start)),
			slog.String("err", err.Error()),
		)
		return "", fmt.Errorf("oracle lookup: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("oracle lookup status: %s", resp.Status)
	}

	var body deliveryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return "", fmt.Errorf("oracle decode: %w", err)
	}
	if !body.Delivered {
		return "", nil
	}
	return body.Code, nil
}
