// Package pathology calls the chest X-ray pathology scoring service.
package pathology

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

var (
	ErrNotConfigured = errors.New("X-ray model URL is not configured")
	ErrNoScores      = errors.New("X-ray model returned no pathology scores")
)

type Config struct {
	URL     string
	Timeout time.Duration
}

// Observer receives the outcome of every outbound call.
type Observer interface {
	ObserveExternalCall(service string, start time.Time, err error)
}

type predictResponse struct {
	Pathologies map[string]float64 `json:"pathologies"`
	Error       string             `json:"error"`
}

// Client posts an image to <URL>/predict as the multipart field "file" and
// reads back a probability per pathology.
type Client struct {
	http     *resty.Client
	observer Observer
	enabled  bool
}

func New(cfg Config, observer Observer) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	http := resty.New().
		SetBaseURL(strings.TrimRight(cfg.URL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Accept", "application/json")

	return &Client{http: http, observer: observer, enabled: cfg.URL != ""}
}

// Predict scores image and returns pathology name -> probability in [0, 1].
func (c *Client) Predict(ctx context.Context, fileName string, image []byte) (scores map[string]float64, err error) {
	if !c.enabled {
		return nil, ErrNotConfigured
	}
	if c.observer != nil {
		start := time.Now()
		defer func() { c.observer.ObserveExternalCall("pathology", start, err) }()
	}

	var result, failure predictResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetFileReader("file", fileName, bytes.NewReader(image)).
		SetResult(&result).
		SetError(&failure).
		Post("/predict")
	if err != nil {
		return nil, fmt.Errorf("pathology request: %w", err)
	}
	if resp.IsError() {
		msg := failure.Error
		if msg == "" {
			msg = resp.Status()
		}
		return nil, fmt.Errorf("pathology model returned %d: %s", resp.StatusCode(), msg)
	}
	if len(result.Pathologies) == 0 {
		return nil, ErrNoScores
	}
	for name, score := range result.Pathologies {
		if score < 0 || score > 1 {
			return nil, fmt.Errorf("pathology model returned out-of-range score %v for %s", score, name)
		}
	}
	return result.Pathologies, nil
}
