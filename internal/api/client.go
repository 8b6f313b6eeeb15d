package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/alvarorichard/goskip/internal/util"
	"github.com/charmbracelet/log"
	"github.com/pkg/errors"
)

// SearchResult is one title match returned by the search endpoint
type SearchResult struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// searchResponse struct to hold the response from the search endpoint
type searchResponse struct {
	Results *[]SearchResult `json:"results"`
}

// TimingRecord holds every known episode's timings for one title.
// Sections are kept raw because their validity is decided per section.
type TimingRecord struct {
	ID       string                    `json:"id"`
	Episodes map[string]EpisodeTimings `json:"episodes"`
}

// EpisodeTimings holds the raw [start, end] arrays for one episode
type EpisodeTimings struct {
	Intro json.RawMessage `json:"intro,omitempty"`
	Outro json.RawMessage `json:"outro,omitempty"`
}

// ClientConfig configures a Client
type ClientConfig struct {
	BaseURL    string
	HTTPClient *http.Client
	Retry      RetryPolicy
	Logger     *log.Logger
}

// Client talks to the remote timing API:
//
//	GET {base}/search?title=<title>  -> {"results":[{"id":..,"title":..}]}
//	GET {base}/timings/{id}          -> {"id":..,"episodes":{"1":{"intro":[s,e],"outro":[s,e]}}}
type Client struct {
	baseURL string
	http    *http.Client
	retry   RetryPolicy
	logger  *log.Logger
}

// NewClient creates a new timing API client
func NewClient(cfg ClientConfig) *Client {
	if cfg.HTTPClient == nil {
		// attempts are bounded by RetryPolicy.Timeout through their context
		cfg.HTTPClient = util.NewHTTPClient(0)
	}
	if cfg.Retry.MaxAttempts == 0 {
		cfg.Retry = DefaultRetryPolicy()
	}
	if cfg.Logger == nil {
		cfg.Logger = log.Default()
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    cfg.HTTPClient,
		retry:   cfg.Retry,
		logger:  cfg.Logger,
	}
}

// Search looks up a title and returns its matches in API order
func (c *Client) Search(ctx context.Context, title string) ([]SearchResult, error) {
	endpoint := c.baseURL + "/search?title=" + url.QueryEscape(title)

	var results []SearchResult
	err := c.retry.Do(ctx, c.logger, func(ctx context.Context) error {
		var resp searchResponse
		if err := c.getJSON(ctx, endpoint, &resp); err != nil {
			return err
		}
		if resp.Results == nil {
			return errors.Wrap(ErrMalformedResponse, "search response has no results field")
		}
		results = *resp.Results
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "searching %q", title)
	}
	return results, nil
}

// Timings fetches the full timing record for a provider-side title id
func (c *Client) Timings(ctx context.Context, id string) (*TimingRecord, error) {
	endpoint := c.baseURL + "/timings/" + url.PathEscape(id)

	var record TimingRecord
	err := c.retry.Do(ctx, c.logger, func(ctx context.Context) error {
		record = TimingRecord{}
		if err := c.getJSON(ctx, endpoint, &record); err != nil {
			return err
		}
		if record.Episodes == nil {
			return errors.Wrap(ErrMalformedResponse, "timing record has no episodes field")
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrapf(err, "fetching timings for %s", id)
	}
	return &record, nil
}

// getJSON performs one GET and decodes the body into dest
func (c *Client) getJSON(ctx context.Context, endpoint string, dest interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return errors.Wrapf(ErrNetwork, "GET %s: %v", endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(ErrNetwork, "GET %s: status %d", endpoint, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(ErrNetwork, "reading body of %s: %v", endpoint, err)
	}

	c.logger.Debug("timing API response", "url", endpoint, "bytes", len(body))

	if err := json.Unmarshal(body, dest); err != nil {
		return errors.Wrapf(ErrMalformedResponse, "decoding %s: %v", endpoint, err)
	}
	return nil
}
