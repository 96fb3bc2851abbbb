// Package steamnet talks to the trading network gateway: HTTP for offer
// commands, WebSocket for the notification stream. The session handling
// itself (login, mobile confirmations) lives in the gateway; this package
// only speaks its API.
package steamnet

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/skinflow/tradebot/internal/domain"
)

var _ domain.TransportCommands = (*Commands)(nil)

// Commands issues offer commands through the gateway's HTTP API.
type Commands struct {
	baseURL string
	apiKey  string
	client  *http.Client
	log     zerolog.Logger
}

// NewCommands creates a command client for the gateway at baseURL.
func NewCommands(baseURL, apiKey string, timeout time.Duration, log zerolog.Logger) *Commands {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Commands{
		baseURL: baseURL,
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		log:     log.With().Str("client", "steamnet").Logger(),
	}
}

// Accept accepts an incoming offer.
func (c *Commands) Accept(ctx context.Context, offerID string) error {
	if err := c.post(ctx, fmt.Sprintf("/offers/%s/accept", offerID), nil, nil); err != nil {
		return fmt.Errorf("failed to accept offer %s: %w", offerID, err)
	}
	c.log.Info().Str("trade_offer_id", offerID).Msg("offer accepted")
	return nil
}

// Decline declines an incoming offer.
func (c *Commands) Decline(ctx context.Context, offerID string) error {
	if err := c.post(ctx, fmt.Sprintf("/offers/%s/decline", offerID), nil, nil); err != nil {
		return fmt.Errorf("failed to decline offer %s: %w", offerID, err)
	}
	c.log.Info().Str("trade_offer_id", offerID).Msg("offer declined")
	return nil
}

// Send submits a bot-initiated offer and returns the id the gateway assigned.
func (c *Commands) Send(ctx context.Context, offer domain.Offer) (string, error) {
	var result struct {
		TradeOfferID string `json:"trade_offer_id"`
	}
	if err := c.post(ctx, "/offers", offer, &result); err != nil {
		return "", fmt.Errorf("failed to send offer: %w", err)
	}
	if result.TradeOfferID == "" {
		return "", domain.NewDependencyUnavailable("steamnet",
			fmt.Errorf("gateway returned no offer id"))
	}
	c.log.Info().Str("trade_offer_id", result.TradeOfferID).Msg("offer sent")
	return result.TradeOfferID, nil
}

func (c *Commands) post(ctx context.Context, path string, body, out interface{}) error {
	var reqBody bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&reqBody).Encode(body); err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, &reqBody)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.NewDependencyUnavailable("steamnet", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.NewNotFoundError("offer", path)
	case resp.StatusCode == http.StatusConflict:
		return domain.NewConflictError("offer", path)
	case resp.StatusCode >= 400:
		return domain.NewDependencyUnavailable("steamnet",
			fmt.Errorf("gateway returned status %d", resp.StatusCode))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}
