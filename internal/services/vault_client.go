package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// VaultClient hands delivery payloads to the encryption bridge, which seals
// them with the buyer's key before they are persisted on the order.
type VaultClient struct {
	baseURL    string
	httpClient *http.Client
	log        *zap.Logger
}

func NewVaultClient(baseURL string, log *zap.Logger) *VaultClient {
	return &VaultClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

type sealRequest struct {
	OrderID   string `json:"order_id"`
	Plaintext string `json:"plaintext"`
}

type sealResponse struct {
	Ciphertext string `json:"ciphertext"`
}

func (c *VaultClient) Seal(ctx context.Context, orderID uuid.UUID, plaintext string) (string, error) {
	body, err := json.Marshal(sealRequest{OrderID: orderID.String(), Plaintext: plaintext})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/internal/seal", strings.NewReader(string(body)))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("vault bridge unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("vault bridge returned %d: %s", resp.StatusCode, string(b))
	}

	var result sealResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	return result.Ciphertext, nil
}
