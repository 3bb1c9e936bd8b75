package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/influenza/backend/internal/config"
)

// MatchAIClient talks to the external influencer match-scoring service.
// Scoring and ranking live entirely in that service; this client only
// forwards the business profile and returns the payload unchanged.
type MatchAIClient struct {
	baseURL    string
	httpClient *http.Client
}

type matchAIRequest struct {
	BusinessDetails string `json:"businessDetails"`
}

func NewMatchAIClient(cfg config.MatchAIConfig) *MatchAIClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "http://localhost:8000"
	}

	return &MatchAIClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second, // scoring can be slow
		},
	}
}

// Recommend requests influencer matches for the given business description.
func (c *MatchAIClient) Recommend(ctx context.Context, businessDetails string) (json.RawMessage, error) {
	payload, err := json.Marshal(matchAIRequest{BusinessDetails: businessDetails})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal match request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/recommend", bytes.NewBuffer(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to reach match service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("match service returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return json.RawMessage(body), nil
}
