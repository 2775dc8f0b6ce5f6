package balance

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/meterlease/meterlease-core/internal/infrastructure/config"
)

// Transferer settles a withdrawal by paying funds out to an account.
//
// Transfer is invoked inside the withdrawal transaction, after the balance
// has been zeroed and the withdrawal recorded. Returning an error rolls the
// whole unit back.
type Transferer interface {
	Transfer(ctx context.Context, to string, amount int64) error
}

// NoopTransferer acknowledges payouts without contacting a gateway.
// Used in development when settlement is disabled.
type NoopTransferer struct{}

// Transfer always succeeds.
func (NoopTransferer) Transfer(_ context.Context, _ string, _ int64) error {
	return nil
}

// GatewayTransferer posts payout instructions to the settlement gateway
// over HTTP.
type GatewayTransferer struct {
	url    string
	token  string
	client *http.Client
}

// NewGatewayTransferer creates a transferer for the configured gateway.
func NewGatewayTransferer(cfg config.SettlementConfig) *GatewayTransferer {
	return &GatewayTransferer{
		url:   cfg.URL,
		token: cfg.Token,
		client: &http.Client{
			Timeout: cfg.GetTimeout(),
		},
	}
}

// payoutRequest is the gateway wire format for a payout instruction.
type payoutRequest struct {
	To     string `json:"to"`
	Amount int64  `json:"amount"`
}

// Transfer posts a payout instruction and treats any non-2xx response as a
// rejected transfer.
func (g *GatewayTransferer) Transfer(ctx context.Context, to string, amount int64) error {
	body, err := json.Marshal(payoutRequest{To: to, Amount: amount})
	if err != nil {
		return fmt.Errorf("marshalling payout request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url+"/payouts", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("building payout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if g.token != "" {
		req.Header.Set("Authorization", "Bearer "+g.token)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrTransferFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		// Read a short error snippet for diagnostics.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return fmt.Errorf("%w: gateway returned %d: %s", ErrTransferFailed, resp.StatusCode, snippet)
	}

	return nil
}
