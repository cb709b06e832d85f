package classifier

import (
	"context"
	"fmt"

	"github.com/go-resty/resty/v2"

	"github.com/civicgrid/platform/internal/shared/config"
)

// Prediction is the classifier service's answer for a report text.
// PriorityScore is nil when the service omits it.
type Prediction struct {
	PriorityScore *float64 `json:"priority_score"`
	CommunityName string   `json:"community_name"`
}

type prioritizeRequest struct {
	Text string `json:"text"`
}

type prioritizeResponse struct {
	Result Prediction `json:"result"`
}

// Client talks to the prioritization HTTP service.
type Client struct {
	http *resty.Client
}

// NewClient builds a client bounded by the configured timeout.
func NewClient(cfg config.ClassifierConfig) *Client {
	http := resty.New().
		SetBaseURL(cfg.URL).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json")

	return &Client{http: http}
}

// Prioritize submits the report text and returns the prediction.
func (c *Client) Prioritize(ctx context.Context, text string) (*Prediction, error) {
	var result prioritizeResponse

	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(prioritizeRequest{Text: text}).
		SetResult(&result).
		Post("/prioritize")
	if err != nil {
		return nil, fmt.Errorf("classifier request failed: %w", err)
	}

	if resp.IsError() {
		return nil, fmt.Errorf("classifier returned status %d", resp.StatusCode())
	}

	return &result.Result, nil
}
