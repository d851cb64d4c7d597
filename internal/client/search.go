package client

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"recipebook/ingredientservice/internal/domain"
	"recipebook/ingredientservice/internal/metrics"
)

const (
	DefaultDebounce    = 300 * time.Millisecond
	MinQueryLength     = 2
	defaultSearchFetch = 20
)

type SearchPhase int

const (
	PhaseIdle SearchPhase = iota
	// PhaseTyping waits for the quiet period before a request is issued.
	PhaseTyping
	PhasePending
	PhaseSettled
	PhaseFailed
)

func (p SearchPhase) String() string {
	switch p {
	case PhaseTyping:
		return "typing"
	case PhasePending:
		return "pending"
	case PhaseSettled:
		return "settled"
	case PhaseFailed:
		return "failed"
	default:
		return "idle"
	}
}

// SearchState is a snapshot of the typeahead. Token is the request the
// suggestions belong to; it only grows.
type SearchState struct {
	Phase       SearchPhase
	Query       string
	Token       uint64
	Suggestions []domain.Suggestion
	Err         error
}

func (s SearchState) clone() SearchState {
	s.Suggestions = append([]domain.Suggestion(nil), s.Suggestions...)
	return s
}

type SearchOption func(*SearchController)

func WithDebounce(d time.Duration) SearchOption {
	return func(c *SearchController) {
		if d >= 0 {
			c.debounce = d
		}
	}
}

func WithSuggestionLimit(limit int) SearchOption {
	return func(c *SearchController) {
		if limit > 0 {
			c.limit = limit
		}
	}
}

func WithSearchLang(lang string) SearchOption {
	return func(c *SearchController) {
		if lang = strings.ToLower(strings.TrimSpace(lang)); lang != "" {
			c.lang = lang
		}
	}
}

func WithSearchLogger(logger *slog.Logger) SearchOption {
	return func(c *SearchController) {
		c.logger = logger
	}
}

// SearchController drives typeahead suggestions. Input restarts a quiet
// period; when it elapses one request is issued with a new token and any
// older request is cancelled. A response is applied only if its token is
// still the latest one issued.
type SearchController struct {
	searcher Searcher
	lang     string
	debounce time.Duration
	limit    int
	logger   *slog.Logger

	mu       sync.Mutex
	state    SearchState
	timer    *time.Timer
	inputGen uint64
	issued   uint64
	cancel   context.CancelFunc
	closed   bool
	subs     map[uint64]func(SearchState)
	nextSub  uint64
	requests sync.WaitGroup

	// pendingQuery is the input waiting on the quiet period. Responses
	// never touch it.
	pendingQuery string

	// publishMu serializes listener delivery so listeners never observe
	// an older snapshot after a newer one.
	publishMu sync.Mutex
}

func NewSearchController(searcher Searcher, opts ...SearchOption) *SearchController {
	c := &SearchController{
		searcher: searcher,
		lang:     domain.DefaultLang,
		debounce: DefaultDebounce,
		limit:    DefaultSuggestionLimit,
		logger:   slog.Default(),
		subs:     make(map[uint64]func(SearchState)),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	return c
}

// Input records the current text of the search box.
func (c *SearchController) Input(query string) {
	query = strings.TrimSpace(query)

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.inputGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}

	if utf8.RuneCountInString(query) < MinQueryLength {
		// Short input supersedes whatever is running and clears the list.
		c.issued++
		c.cancelInFlightLocked()
		c.state = SearchState{Phase: PhaseIdle, Query: query, Token: c.issued}
		c.mu.Unlock()
		c.publish()
		return
	}

	gen := c.inputGen
	c.pendingQuery = query
	c.state.Phase = PhaseTyping
	c.state.Query = query
	c.timer = time.AfterFunc(c.debounce, func() { c.fire(gen) })
	c.mu.Unlock()
	c.publish()
}

func (c *SearchController) fire(gen uint64) {
	c.mu.Lock()
	if c.closed || gen != c.inputGen {
		c.mu.Unlock()
		return
	}
	c.timer = nil
	c.issued++
	token := c.issued
	query := c.pendingQuery
	c.cancelInFlightLocked()

	ctx, cancel := context.WithCancel(context.Background())
	c.cancel = cancel
	c.state.Phase = PhasePending
	c.state.Query = query
	c.state.Err = nil
	c.requests.Add(1)
	c.mu.Unlock()
	c.publish()

	go c.run(ctx, cancel, token, gen, query)
}

func (c *SearchController) run(ctx context.Context, cancel context.CancelFunc, token, gen uint64, query string) {
	defer c.requests.Done()
	defer cancel()

	results, err := c.searcher.Search(ctx, domain.SearchQuery{
		Query: query,
		Lang:  c.lang,
		Limit: max(defaultSearchFetch, c.limit),
	})

	c.mu.Lock()
	// Newer input since this request fired means the box is typing again.
	if c.closed || token != c.issued || gen != c.inputGen {
		c.mu.Unlock()
		metrics.SearchRequestsTotal.WithLabelValues("stale").Inc()
		return
	}
	c.cancel = nil
	if err != nil {
		c.state = SearchState{Phase: PhaseFailed, Query: query, Token: token, Err: err}
		c.mu.Unlock()
		metrics.SearchRequestsTotal.WithLabelValues("failed").Inc()
		c.logger.Warn("ingredient search failed",
			slog.String("query", query),
			slog.String("error", err.Error()),
		)
		c.publish()
		return
	}
	c.state = SearchState{
		Phase:       PhaseSettled,
		Query:       query,
		Token:       token,
		Suggestions: RankSuggestions(query, results, c.lang, c.limit),
	}
	c.mu.Unlock()
	metrics.SearchRequestsTotal.WithLabelValues("applied").Inc()
	c.publish()
}

func (c *SearchController) cancelInFlightLocked() {
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
}

func (c *SearchController) State() SearchState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.clone()
}

// Subscribe registers fn for state changes. fn runs outside the controller
// lock and may call State.
func (c *SearchController) Subscribe(fn func(SearchState)) func() {
	if fn == nil {
		return func() {}
	}
	c.mu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = fn
	c.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			c.mu.Lock()
			delete(c.subs, id)
			c.mu.Unlock()
		})
	}
}

func (c *SearchController) publish() {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	c.mu.Lock()
	snapshot := c.state.clone()
	listeners := make([]func(SearchState), 0, len(c.subs))
	for _, fn := range c.subs {
		listeners = append(listeners, fn)
	}
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(snapshot)
	}
}

// Close stops the quiet-period timer, cancels the running request and waits
// for it to return. Later Input calls are ignored.
func (c *SearchController) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.inputGen++
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
	c.cancelInFlightLocked()
	c.mu.Unlock()

	c.requests.Wait()
}
