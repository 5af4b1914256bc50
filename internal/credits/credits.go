// Package credits is the authorization gate in front of the expensive
// generation steps. It is a thin client over the Supabase REST schema;
// billing logic itself lives elsewhere.
package credits

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// Credit costs per action. The worker checks before running and
// deducts after success.
const (
	CostGenerateScenario = 5
	CostGenerateShadow   = 2
	CostMergeVideo       = 1
)

type Service struct {
	url        string
	serviceKey string
	client     *http.Client
}

func New(url, serviceKey string) *Service {
	return &Service{
		url:        url,
		serviceKey: serviceKey,
		client:     &http.Client{Timeout: 15 * time.Second},
	}
}

// Balance returns the user's current credit balance.
func (s *Service) Balance(ctx context.Context, userID string) (int, error) {
	url := fmt.Sprintf("%s/rest/v1/user_credits?user_id=eq.%s&select=balance", s.url, userID)

	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	s.auth(req)

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("credit lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return 0, fmt.Errorf("credit lookup returned status %d: %s", resp.StatusCode, string(body))
	}

	var rows []struct {
		Balance int `json:"balance"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&rows); err != nil {
		return 0, fmt.Errorf("failed to parse credit response: %w", err)
	}
	if len(rows) == 0 {
		return 0, nil // unknown user = zero balance
	}

	return rows[0].Balance, nil
}

// CanPerform reports whether the user has at least cost credits.
func (s *Service) CanPerform(ctx context.Context, userID string, cost int) (bool, error) {
	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return false, err
	}
	return balance >= cost, nil
}

// Deduct subtracts cost credits via the deduct_credits RPC. Callers
// treat a deduction failure after successful work as log-and-continue;
// the user keeps the artifact.
func (s *Service) Deduct(ctx context.Context, userID string, cost int, reason string) error {
	url := fmt.Sprintf("%s/rest/v1/rpc/deduct_credits", s.url)

	payload, err := json.Marshal(map[string]interface{}{
		"p_user_id": userID,
		"p_amount":  cost,
		"p_reason":  reason,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal deduct payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	s.auth(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("credit deduction failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("credit deduction returned status %d: %s", resp.StatusCode, string(body))
	}

	log.Printf("[Credits] Deducted %d from %s (%s)", cost, userID, reason)
	return nil
}

func (s *Service) auth(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)
}
