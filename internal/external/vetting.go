package external

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// VettingClient queries the membership vetting service. Social events only
// admit vetted members; classes and workshops skip the check.
type VettingClient struct {
	baseURL    string
	httpClient *http.Client
}

type VettingConfig struct {
	BaseURL string
	Timeout time.Duration
}

type VettingStatusResponse struct {
	UserID    int64  `json:"user_id"`
	Status    string `json:"status"`
	VettedAt  *int64 `json:"vetted_at"`
	ExpiresAt *int64 `json:"expires_at"`
}

const vettingStatusApproved = "APPROVED"

func NewVettingClient(cfg VettingConfig) *VettingClient {
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	return &VettingClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

func (vc *VettingClient) GetStatus(ctx context.Context, userID int64) (*VettingStatusResponse, error) {
	url := fmt.Sprintf("%s/api/v1/members/%d/vetting", vc.baseURL, userID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := vc.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to get vetting status: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// No vetting record means not vetted
		return &VettingStatusResponse{UserID: userID, Status: "NONE"}, nil
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var result VettingStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &result, nil
}

// IsVetted reports whether the user holds an approved, unexpired vetting.
func (vc *VettingClient) IsVetted(ctx context.Context, userID int64) (bool, error) {
	status, err := vc.GetStatus(ctx, userID)
	if err != nil {
		return false, err
	}

	if status.Status != vettingStatusApproved {
		return false, nil
	}

	if status.ExpiresAt != nil && time.Unix(*status.ExpiresAt, 0).Before(time.Now()) {
		return false, nil
	}

	return true, nil
}
