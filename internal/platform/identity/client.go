package identity

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to the external identity provider. The service only ever asks
// it one question: which user does this session token belong to.
type Client struct {
	verifyURL  string
	httpClient *http.Client
}

func NewClient(verifyURL string, timeout time.Duration) *Client {
	return &Client{
		verifyURL: verifyURL,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

type userResponse struct {
	ID string `json:"id"`
}

// Verify forwards the bearer token to the provider and returns the user id.
func (c *Client) Verify(ctx context.Context, token string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.verifyURL, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build session request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("session lookup failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("session lookup returned status %d", resp.StatusCode)
	}

	var user userResponse
	if err := json.NewDecoder(resp.Body).Decode(&user); err != nil {
		return "", fmt.Errorf("failed to decode session response: %w", err)
	}
	if user.ID == "" {
		return "", fmt.Errorf("session response missing user id")
	}

	return user.ID, nil
}
