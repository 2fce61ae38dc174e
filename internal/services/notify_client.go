package services

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NotifyClient talks to the internal notification bridge (email/push delivery
// lives behind it). All calls are best-effort: failures are logged and never
// unwind a committed state transition.
type NotifyClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewNotifyClient(baseURL string, log *zap.Logger) *NotifyClient {
	return &NotifyClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

func (c *NotifyClient) NotifyUser(ctx context.Context, userID uuid.UUID, text string) {
	c.post(ctx, "/internal/notify", map[string]any{
		"user_id": userID.String(),
		"text":    text,
	})
}

func (c *NotifyClient) AlertAdmins(ctx context.Context, text string, meta map[string]any) {
	c.post(ctx, "/internal/notify/admins", map[string]any{
		"text": text,
		"meta": meta,
	})
}

func (c *NotifyClient) post(ctx context.Context, path string, payload map[string]any) {
	body, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		fmt.Sprintf("%s%s", c.baseURL, path), strings.NewReader(string(body)))
	if err != nil {
		c.log.Warn("failed to build notify request", zap.Error(err))
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("notify bridge unavailable", zap.Error(err))
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.log.Warn("notify bridge returned error", zap.Int("status", resp.StatusCode), zap.String("path", path))
	}
}
