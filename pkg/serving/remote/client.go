// Package remote scores pair vectors against a model server over HTTP.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/synaptica-ai/rxlink/pkg/common/httpclient"
	"github.com/synaptica-ai/rxlink/pkg/features"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

type Config struct {
	BaseURL   string
	Model     string
	Timeout   time.Duration
	Attempts  int
	BaseDelay time.Duration

	// OAuth2 client credentials; leave ClientID empty for unauthenticated servers.
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scopes       []string
}

type Client struct {
	endpoint  string
	model     string
	http      *http.Client
	attempts  int
	baseDelay time.Duration
}

type scoreRequest struct {
	Model        string    `json:"model"`
	Schema       string    `json:"schema"`
	FeatureNames []string  `json:"feature_names"`
	Features     []float64 `json:"features"`
}

type scoreResponse struct {
	Probability *float64 `json:"probability"`
	Version     string   `json:"version,omitempty"`
}

func New(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("remote scorer: base URL required")
	}
	if cfg.Model == "" {
		return nil, errors.New("remote scorer: model name required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = 100 * time.Millisecond
	}

	client := httpclient.New(cfg.Timeout)
	if cfg.ClientID != "" {
		if cfg.TokenURL == "" {
			return nil, errors.New("remote scorer: token URL required with client credentials")
		}
		cc := clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
		client = cc.Client(ctx)
		client.Timeout = cfg.Timeout
	}

	endpoint := fmt.Sprintf("%s/v1/models/%s:score", strings.TrimRight(cfg.BaseURL, "/"), url.PathEscape(cfg.Model))
	return &Client{
		endpoint:  endpoint,
		model:     cfg.Model,
		http:      client,
		attempts:  cfg.Attempts,
		baseDelay: cfg.BaseDelay,
	}, nil
}

func (c *Client) ModelVersion() string {
	return "remote:" + c.model
}

// Score posts the vector and returns the server's probability unchecked;
// range validation belongs to the caller.
func (c *Client) Score(ctx context.Context, v features.Vector) (float64, error) {
	body, err := json.Marshal(scoreRequest{
		Model:        c.model,
		Schema:       features.SchemaVersion,
		FeatureNames: features.Names(),
		Features:     v.Slice(),
	})
	if err != nil {
		return 0, err
	}

	var probability float64
	err = httpclient.Retry(ctx, c.attempts, c.baseDelay, func() error {
		p, err := c.post(ctx, body)
		if err != nil {
			return err
		}
		probability = p
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("remote scorer %s: %w", c.model, err)
	}
	return probability, nil
}

func (c *Client) post(ctx context.Context, body []byte) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return 0, httpclient.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		statusErr := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
		if httpclient.IsRetriableStatus(resp.StatusCode) {
			return 0, statusErr
		}
		return 0, httpclient.Permanent(statusErr)
	}

	var out scoreResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return 0, httpclient.Permanent(fmt.Errorf("decode response: %w", err))
	}
	if out.Probability == nil {
		return 0, httpclient.Permanent(errors.New("response missing probability"))
	}
	return *out.Probability, nil
}
