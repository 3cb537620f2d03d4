// Package translation is the HTTP client for the external text-generation
// service that turns natural-language questions into queries.
package translation

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/hyperterse/querygate/core/domain"
	"github.com/hyperterse/querygate/core/domain/interfaces"
	"github.com/hyperterse/querygate/core/infrastructure/logging"
	gwerrors "github.com/hyperterse/querygate/core/shared/errors"
)

// DefaultTimeout bounds one translation round trip
const DefaultTimeout = 60 * time.Second

// maxErrorBody caps how much of a failed response ends up in the error
const maxErrorBody = 512

// Request is the body posted to the translation endpoint
type Request struct {
	NaturalLanguageQuery string `json:"natural_language_query"`
	DatabaseSchema       string `json:"database_schema"`
	DatabaseType         string `json:"database_type"`
}

// Response is the body the translation endpoint answers with
type Response struct {
	SQLQuery string `json:"sql_query"`
}

// Client implements interfaces.TranslationPort over HTTP
type Client struct {
	endpoint   string
	apiKey     string
	timeout    time.Duration
	httpClient *http.Client
	log        logging.Logger
}

var _ interfaces.TranslationPort = (*Client)(nil)

// Option configures a Client
type Option func(*Client)

// WithAPIKey sends key as a bearer token
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = key
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds each translation request. A client given through
// WithHTTPClient is copied, never modified.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// NewClient creates a client posting to endpoint
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   endpoint,
		httpClient: &http.Client{Timeout: DefaultTimeout},
		log:        logging.New("translation"),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

// EngineLabel is the database type name the generator is prompted with
func EngineLabel(engine domain.EngineType) string {
	if engine == domain.EngineMongoDB {
		return "MongoDB Shell Command"
	}
	return string(engine)
}

// Translate asks the endpoint for a query answering question and returns it cleaned up
func (c *Client) Translate(ctx context.Context, question, schema string, engine domain.EngineType) (string, error) {
	body, err := json.Marshal(Request{
		NaturalLanguageQuery: question,
		DatabaseSchema:       schema,
		DatabaseType:         EngineLabel(engine),
	})
	if err != nil {
		return "", failed(engine, "failed to encode translation request", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", failed(engine, "invalid translation endpoint", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.log.Debugf("Requesting %s translation from %s", EngineLabel(engine), c.endpoint)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", failed(engine, "translation request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return "", failed(engine, fmt.Sprintf("translation endpoint returned %d: %s", resp.StatusCode, strings.TrimSpace(string(excerpt))), nil)
	}

	var out Response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", failed(engine, "failed to decode translation response", err)
	}

	query := CleanGeneratedQuery(out.SQLQuery)
	if query == "" {
		return "", failed(engine, "translation endpoint returned an empty query", nil)
	}
	return query, nil
}

func failed(engine domain.EngineType, message string, err error) error {
	return gwerrors.New(gwerrors.KindTranslationFailed, string(engine), message, err)
}

// CleanGeneratedQuery trims generated text and unwraps a ``` fenced block,
// dropping a leading sql, javascript or js language line inside the fence.
func CleanGeneratedQuery(text string) string {
	query := strings.TrimSpace(text)
	if len(query) < 6 || !strings.HasPrefix(query, "```") || !strings.HasSuffix(query, "```") {
		return query
	}

	query = strings.TrimSpace(query[3 : len(query)-3])
	if lineBreak := strings.IndexByte(query, '\n'); lineBreak != -1 {
		switch strings.TrimSpace(query[:lineBreak]) {
		case "sql", "javascript", "js":
			query = strings.TrimSpace(query[lineBreak+1:])
		}
	}
	return query
}
