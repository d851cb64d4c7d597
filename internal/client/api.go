package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"recipebook/ingredientservice/internal/domain"
)

const (
	apiPrefix       = "/api/v1/ingredients"
	maxResponseSize = 4 << 20
	defaultTimeout  = 10 * time.Second
	// MaxBatchSize is the most ids the service accepts in one batch request.
	MaxBatchSize = 100
)

// BatchFetcher returns the records for a set of ids in one round trip and
// lists the ids the catalog does not know.
type BatchFetcher interface {
	GetMany(ctx context.Context, ids []string) (domain.BatchResult, error)
}

type Searcher interface {
	Search(ctx context.Context, query domain.SearchQuery) ([]domain.Ingredient, error)
}

// Backend is what the resolver needs from the ingredient service. Both
// APIClient and an in-process catalog.Store satisfy it.
type Backend interface {
	BatchFetcher
	Searcher
}

// APIError is a non-2xx answer from the ingredient service.
type APIError struct {
	Status  int
	Code    string
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ingredients api: HTTP %d", e.Status)
	}
	return fmt.Sprintf("ingredients api: HTTP %d: %s", e.Status, e.Message)
}

type APIConfig struct {
	BaseURL   string
	Client    *http.Client
	Timeout   time.Duration
	Retry     *RetryConfig
	UserAgent string
}

// APIClient talks to the versioned ingredient HTTP API.
type APIClient struct {
	baseURL   string
	http      *http.Client
	retry     RetryConfig
	userAgent string
}

type envelope struct {
	Success     bool                `json:"success"`
	Count       int                 `json:"count"`
	Ingredients []domain.Ingredient `json:"ingredients"`
	Ingredient  *domain.Ingredient  `json:"ingredient"`
	Missing     []string            `json:"missing"`
	Categories  []string            `json:"categories"`
	Error       string              `json:"error"`
	Code        string              `json:"code"`
}

func NewAPIClient(cfg APIConfig) *APIClient {
	baseURL := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:5000"
	}
	httpClient := cfg.Client
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	retry := DefaultRetryConfig()
	if cfg.Retry != nil {
		retry = *cfg.Retry
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = "ingredientservice-client"
	}
	return &APIClient{
		baseURL:   baseURL,
		http:      httpClient,
		retry:     retry,
		userAgent: userAgent,
	}
}

func (c *APIClient) Search(ctx context.Context, query domain.SearchQuery) ([]domain.Ingredient, error) {
	query = query.Normalize()
	params := url.Values{}
	if query.Query != "" {
		params.Set("query", query.Query)
	}
	if query.Lang != "" {
		params.Set("lang", query.Lang)
	}
	params.Set("limit", strconv.Itoa(query.Limit))

	var response envelope
	if err := c.get(ctx, apiPrefix+"?"+params.Encode(), &response); err != nil {
		return nil, err
	}
	return nonNil(response.Ingredients), nil
}

// GetByID returns domain.ErrNotFound when the service answers 404.
func (c *APIClient) GetByID(ctx context.Context, id string) (domain.Ingredient, error) {
	if !domain.IsIngredientID(id) {
		return domain.Ingredient{}, fmt.Errorf("%w: %q", domain.ErrInvalidID, id)
	}
	var response envelope
	if err := c.get(ctx, apiPrefix+"/"+id, &response); err != nil {
		return domain.Ingredient{}, err
	}
	if response.Ingredient == nil {
		return domain.Ingredient{}, fmt.Errorf("ingredients api: response for %s has no ingredient", id)
	}
	return *response.Ingredient, nil
}

// GetMany fetches ids in chunks of MaxBatchSize, one request per chunk.
func (c *APIClient) GetMany(ctx context.Context, ids []string) (domain.BatchResult, error) {
	result := domain.BatchResult{Ingredients: []domain.Ingredient{}, Missing: []string{}}
	for start := 0; start < len(ids); start += MaxBatchSize {
		end := min(start+MaxBatchSize, len(ids))
		params := url.Values{"ids": {strings.Join(ids[start:end], ",")}}

		var response envelope
		if err := c.get(ctx, apiPrefix+"/batch?"+params.Encode(), &response); err != nil {
			return domain.BatchResult{}, err
		}
		result.Ingredients = append(result.Ingredients, response.Ingredients...)
		result.Missing = append(result.Missing, response.Missing...)
	}
	return result, nil
}

func (c *APIClient) ByCategory(ctx context.Context, category string) ([]domain.Ingredient, error) {
	category = strings.TrimSpace(category)
	if category == "" {
		return []domain.Ingredient{}, nil
	}
	var response envelope
	if err := c.get(ctx, apiPrefix+"/category/"+url.PathEscape(category), &response); err != nil {
		return nil, err
	}
	return nonNil(response.Ingredients), nil
}

func (c *APIClient) Categories(ctx context.Context) ([]string, error) {
	var response envelope
	if err := c.get(ctx, apiPrefix+"/categories", &response); err != nil {
		return nil, err
	}
	if response.Categories == nil {
		return []string{}, nil
	}
	return response.Categories, nil
}

func (c *APIClient) get(ctx context.Context, path string, out *envelope) error {
	err := RetryWithBackoff(ctx, c.retry, func() error {
		return c.doGet(ctx, path, out)
	})
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, apiErr.Message)
	}
	return err
}

func (c *APIClient) doGet(ctx context.Context, path string, out *envelope) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		var failure envelope
		if json.Unmarshal(body, &failure) == nil {
			apiErr.Code = failure.Code
			apiErr.Message = failure.Error
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body[:min(len(body), 256)]))
		}
		return apiErr
	}

	*out = envelope{}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decode ingredients response: %w", err)
	}
	return nil
}

func nonNil(items []domain.Ingredient) []domain.Ingredient {
	if items == nil {
		return []domain.Ingredient{}
	}
	return items
}
