package services

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RefundClient asks the payment gateway bridge to return funds to a buyer.
// Fire-and-forget: escrow state is the source of truth and a delivery failure
// here is retried by the bridge, never rolled back in the core.
type RefundClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewRefundClient(baseURL string, log *zap.Logger) *RefundClient {
	return &RefundClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

func (c *RefundClient) RequestRefund(ctx context.Context, orderID uuid.UUID, amountCents int64) {
	body, _ := json.Marshal(map[string]any{
		"order_id":     orderID.String(),
		"amount_cents": amountCents,
	})

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/internal/refunds", strings.NewReader(string(body)))
	if err != nil {
		c.log.Warn("failed to build refund request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("refund bridge unavailable", zap.String("order_id", orderID.String()), zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		c.log.Warn("refund bridge returned error",
			zap.String("order_id", orderID.String()),
			zap.Int("status", resp.StatusCode))
	}
}
