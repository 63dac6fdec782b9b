// Package websearch queries a SearxNG-compatible JSON search API and formats
// the results as a prompt context block. Failures never surface to callers;
// they yield an empty result.
package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	DefaultURL        = "http://localhost:8080"
	DefaultMaxResults = 5
	DefaultTimeout    = 30 * time.Second
	DefaultLanguage   = "de"
	// MaxContentChars is how much of a result's content reaches the prompt.
	MaxContentChars = 300
)

// Hit is one search result.
type Hit struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
	Engine  string `json:"engine"`
}

type Config struct {
	URL        string
	MaxResults int
	Timeout    time.Duration
	Language   string
	// TimeRange and SafeSearch are passed through as SearxNG parameters.
	TimeRange  string
	SafeSearch int
	// RPS limits outgoing requests; 0 disables limiting.
	RPS    float64
	Burst  int
	Logger zerolog.Logger
}

// Client talks to one SearxNG instance.
type Client struct {
	base       string
	maxResults int
	timeout    time.Duration
	language   string
	timeRange  string
	safeSearch int
	limiter    *rate.Limiter
	http       *http.Client
	log        zerolog.Logger
}

var searchRequests = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Namespace: "ragd",
		Subsystem: "websearch",
		Name:      "requests_total",
		Help:      "Web search requests by result",
	},
	[]string{"result"},
)

func init() {
	prometheus.MustRegister(searchRequests)
}

func New(cfg Config) *Client {
	if cfg.URL == "" {
		cfg.URL = DefaultURL
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = DefaultMaxResults
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Language == "" {
		cfg.Language = DefaultLanguage
	}
	if cfg.TimeRange == "" {
		cfg.TimeRange = "year"
	}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}
	return &Client{
		base:       strings.TrimRight(cfg.URL, "/"),
		maxResults: cfg.MaxResults,
		timeout:    cfg.Timeout,
		language:   cfg.Language,
		timeRange:  cfg.TimeRange,
		safeSearch: cfg.SafeSearch,
		limiter:    limiter,
		http:       &http.Client{},
		log:        cfg.Logger.With().Str("component", "websearch").Logger(),
	}
}

type searxResponse struct {
	Results []Hit `json:"results"`
}

// Search returns up to maxResults hits (the configured default if <= 0).
// Every failure, including timeouts and non-2xx answers, is logged and
// returns no hits.
func (c *Client) Search(ctx context.Context, query string, maxResults int) []Hit {
	if maxResults <= 0 {
		maxResults = c.maxResults
	}
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		c.fail("rate_limited", err)
		return nil
	}
	params := url.Values{}
	params.Set("q", query)
	params.Set("format", "json")
	params.Set("language", c.language)
	params.Set("time_range", c.timeRange)
	params.Set("safesearch", strconv.Itoa(c.safeSearch))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/search?"+params.Encode(), nil)
	if err != nil {
		c.fail("error", err)
		return nil
	}
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			c.fail("timeout", err)
		} else {
			c.fail("error", err)
		}
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.fail("http_error", fmt.Errorf("status %s", resp.Status))
		return nil
	}
	var body searxResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		c.fail("decode_error", err)
		return nil
	}
	hits := body.Results[:min(len(body.Results), maxResults)]
	for i := range hits {
		if hits[i].Engine == "" {
			hits[i].Engine = "unknown"
		}
	}
	searchRequests.WithLabelValues("ok").Inc()
	c.log.Debug().Str("query", query).Int("results", len(hits)).Msg("web search done")
	return hits
}

func (c *Client) fail(result string, err error) {
	searchRequests.WithLabelValues(result).Inc()
	c.log.Warn().Err(err).Str("result", result).Msg("web search failed")
}

var spaces = regexp.MustCompile(`\s+`)

// Format renders hits as a numbered context block. No hits format to "".
func Format(hits []Hit) string {
	if len(hits) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("WEB-SUCHERGEBNISSE:\n\n")
	for i, h := range hits {
		fmt.Fprintf(&b, "[%d] %s\n", i+1, h.Title)
		fmt.Fprintf(&b, "Quelle: %s\n", h.URL)
		content := spaces.ReplaceAllString(strings.TrimSpace(h.Content), " ")
		if r := []rune(content); len(r) > MaxContentChars {
			content = string(r[:MaxContentChars]) + "..."
		}
		b.WriteString(content)
		b.WriteString("\n\n")
	}
	return b.String()
}

// SearchAndFormat searches and formats in one step.
func (c *Client) SearchAndFormat(ctx context.Context, query string, maxResults int) string {
	return Format(c.Search(ctx, query, maxResults))
}
