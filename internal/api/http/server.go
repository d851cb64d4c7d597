package apihttp

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"recipebook/ingredientservice/internal/domain"
	"recipebook/ingredientservice/internal/metrics"
)

const (
	APIVersion       = "1"
	maxBatchIDs      = 100
	defaultRateRPS   = 50
	defaultRateBurst = 100
)

type IngredientService interface {
	GetByID(ctx context.Context, id string) (domain.Ingredient, error)
	GetMany(ctx context.Context, ids []string) (domain.BatchResult, error)
	ByCategory(ctx context.Context, category string) ([]domain.Ingredient, error)
	Search(ctx context.Context, query domain.SearchQuery) ([]domain.Ingredient, error)
	Categories(ctx context.Context) ([]string, error)
	Len() int
}

type Server struct {
	ingredients IngredientService
	logger      *slog.Logger
	defaultLang string
	corsOrigins []string
	rateRPS     float64
	rateBurst   int
}

type ServerOption func(*Server)

func WithLogger(logger *slog.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

func WithDefaultLang(lang string) ServerOption {
	return func(s *Server) {
		if lang = strings.ToLower(strings.TrimSpace(lang)); lang != "" {
			s.defaultLang = lang
		}
	}
}

func WithCORSOrigins(origins []string) ServerOption {
	return func(s *Server) {
		s.corsOrigins = append([]string(nil), origins...)
	}
}

func WithRateLimit(rps float64, burst int) ServerOption {
	return func(s *Server) {
		if rps > 0 {
			s.rateRPS = rps
		}
		if burst > 0 {
			s.rateBurst = burst
		}
	}
}

func NewServer(ingredients IngredientService, options ...ServerOption) *Server {
	server := &Server{
		ingredients: ingredients,
		logger:      slog.Default(),
		defaultLang: domain.DefaultLang,
		rateRPS:     defaultRateRPS,
		rateBurst:   defaultRateBurst,
	}
	for _, option := range options {
		if option != nil {
			option(server)
		}
	}
	if server.logger == nil {
		server.logger = slog.Default()
	}
	return server
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.Handle("GET /metrics", promhttp.Handler())
	for _, prefix := range []string{"/api/ingredients", "/api/v" + APIVersion + "/ingredients"} {
		mux.HandleFunc("GET "+prefix, s.handleList)
		mux.HandleFunc("GET "+prefix+"/batch", s.handleBatch)
		mux.HandleFunc("GET "+prefix+"/categories", s.handleCategories)
		mux.HandleFunc("GET "+prefix+"/category/{category}", s.handleCategory)
		mux.HandleFunc("GET "+prefix+"/{id}", s.handleGetByID)
	}
	traced := otelhttp.NewHandler(loggingMiddleware(s.logger, corsMiddleware(s.corsOrigins, mux)), "ingredients",
		otelhttp.WithFilter(func(r *http.Request) bool {
			p := r.URL.Path
			return p != "/metrics" && p != "/health"
		}),
	)
	limiters := newClientLimiters(s.rateRPS, s.rateBurst)
	return requestIDMiddleware(recoveryMiddleware(s.logger, rateLimitMiddleware(limiters, metricsMiddleware(traced))))
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	status := "ok"
	code := http.StatusOK
	count := 0
	if s.ingredients == nil {
		status = "unavailable"
		code = http.StatusServiceUnavailable
	} else {
		count = s.ingredients.Len()
	}
	writeJSON(w, code, map[string]any{
		"status":      status,
		"timestamp":   time.Now().UTC(),
		"ingredients": count,
	})
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	if s.ingredients == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "ingredient catalog is not configured")
		return
	}

	params := r.URL.Query()
	query := strings.TrimSpace(params.Get("query"))
	if query == "" {
		query = strings.TrimSpace(params.Get("q"))
	}
	if len([]rune(query)) > domain.MaxQueryLength {
		writeError(w, http.StatusBadRequest, "invalid_request", "query too long (max "+strconv.Itoa(domain.MaxQueryLength)+" characters)")
		return
	}
	lang := strings.ToLower(strings.TrimSpace(params.Get("lang")))
	if lang == "" {
		lang = s.defaultLang
	}
	// A malformed limit is recovered by falling back to the default.
	limit := parseLimit(params.Get("limit"))

	results, err := s.ingredients.Search(r.Context(), domain.SearchQuery{
		Query: query,
		Lang:  lang,
		Limit: limit,
	})
	if err != nil {
		s.failInternal(w, r, "search", err)
		return
	}
	recordQuery("search", len(results))
	writeList(w, results)
}

func (s *Server) handleGetByID(w http.ResponseWriter, r *http.Request) {
	if s.ingredients == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "ingredient catalog is not configured")
		return
	}
	id := strings.TrimSpace(r.PathValue("id"))
	if !domain.IsIngredientID(id) {
		metrics.QueriesTotal.WithLabelValues("get", "invalid").Inc()
		writeError(w, http.StatusBadRequest, "invalid_request", "ingredient id must be exactly 6 digits")
		return
	}

	ingredient, err := s.ingredients.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			metrics.QueriesTotal.WithLabelValues("get", "not_found").Inc()
			writeError(w, http.StatusNotFound, "not_found", "ingredient not found")
			return
		}
		s.failInternal(w, r, "get", err)
		return
	}
	metrics.QueriesTotal.WithLabelValues("get", "hit").Inc()
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"ingredient": ingredient,
	})
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	if s.ingredients == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "ingredient catalog is not configured")
		return
	}
	results, err := s.ingredients.ByCategory(r.Context(), r.PathValue("category"))
	if err != nil {
		s.failInternal(w, r, "category", err)
		return
	}
	recordQuery("category", len(results))
	writeList(w, results)
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if s.ingredients == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "ingredient catalog is not configured")
		return
	}
	ids := parseCSV(r.URL.Query().Get("ids"))
	if len(ids) == 0 {
		writeError(w, http.StatusBadRequest, "invalid_request", "ids is required")
		return
	}
	if len(ids) > maxBatchIDs {
		writeError(w, http.StatusBadRequest, "invalid_request", "too many ids (max "+strconv.Itoa(maxBatchIDs)+")")
		return
	}
	for _, id := range ids {
		if !domain.IsIngredientID(id) {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid ingredient id: "+truncate(id, 40))
			return
		}
	}

	result, err := s.ingredients.GetMany(r.Context(), ids)
	if err != nil {
		s.failInternal(w, r, "batch", err)
		return
	}
	recordQuery("batch", len(result.Ingredients))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"count":       len(result.Ingredients),
		"ingredients": result.Ingredients,
		"missing":     result.Missing,
	})
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	if s.ingredients == nil {
		writeError(w, http.StatusInternalServerError, "internal_error", "ingredient catalog is not configured")
		return
	}
	categories, err := s.ingredients.Categories(r.Context())
	if err != nil {
		s.failInternal(w, r, "categories", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":    true,
		"count":      len(categories),
		"categories": categories,
	})
}

func (s *Server) failInternal(w http.ResponseWriter, r *http.Request, op string, err error) {
	metrics.QueriesTotal.WithLabelValues(op, "error").Inc()
	s.logger.Error("ingredient query failed",
		slog.String("op", op),
		slog.String("path", r.URL.Path),
		slog.String("error", err.Error()),
	)
	writeError(w, http.StatusInternalServerError, "internal_error", "failed to query ingredients")
}

func recordQuery(op string, count int) {
	result := "hit"
	if count == 0 {
		result = "empty"
	}
	metrics.QueriesTotal.WithLabelValues(op, result).Inc()
}

func parseLimit(raw string) int {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.DefaultSearchLimit
	}
	parsed, err := strconv.Atoi(raw)
	if err != nil {
		return domain.DefaultSearchLimit
	}
	return domain.ClampLimit(parsed)
}

func parseCSV(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	seen := make(map[string]struct{}, len(parts))
	for _, part := range parts {
		value := strings.TrimSpace(part)
		if value == "" {
			continue
		}
		if _, exists := seen[value]; exists {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}

func writeList(w http.ResponseWriter, items []domain.Ingredient) {
	if items == nil {
		items = []domain.Ingredient{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":     true,
		"count":       len(items),
		"ingredients": items,
	})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("X-Api-Version", APIVersion)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
		"code":    code,
	})
}
