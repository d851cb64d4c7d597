package client

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"
	"golang.org/x/text/cases"

	"recipebook/ingredientservice/internal/domain"
	"recipebook/ingredientservice/internal/metrics"
	"recipebook/ingredientservice/internal/telemetry"
)

const (
	defaultFetchTimeout    = 10 * time.Second
	defaultParallelBatches = 4
)

type Status int

const (
	StatusPending Status = iota
	StatusResolved
	StatusNotFound
	StatusFailed
	StatusNameMatched
	StatusNameUnverified
)

func (s Status) String() string {
	switch s {
	case StatusResolved:
		return "resolved"
	case StatusNotFound:
		return "not_found"
	case StatusFailed:
		return "failed"
	case StatusNameMatched:
		return "name_matched"
	case StatusNameUnverified:
		return "name_unverified"
	default:
		return "pending"
	}
}

// ItemResult is the outcome for one recipe reference. Record is set only for
// StatusResolved and StatusNameMatched. Err explains StatusFailed, and is also
// set on StatusNameUnverified when the name search itself failed.
type ItemResult struct {
	Ref    domain.Reference
	Status Status
	Record domain.Ingredient
	Err    error
}

func (r ItemResult) HasRecord() bool {
	return r.Status == StatusResolved || r.Status == StatusNameMatched
}

// Units returns the allowed units of the resolved record. false means the
// line has no record yet and the caller should ask for an ingredient first.
func (r ItemResult) Units() ([]string, bool) {
	if !r.HasRecord() {
		return nil, false
	}
	return append([]string(nil), r.Record.AllowedUnits...), true
}

// Resolution is the answer to one ResolveMany call. Items follows the input
// order, duplicates included.
type Resolution struct {
	Records map[string]domain.Ingredient
	Items   []ItemResult
}

type Stats struct {
	Total      int
	Loaded     int
	Missing    int
	Failed     int
	ByName     int
	Unverified int
}

func (r Resolution) Stats() Stats {
	stats := Stats{Total: len(r.Items)}
	for _, item := range r.Items {
		if item.Ref.Kind == domain.RefByName {
			stats.ByName++
		}
		switch item.Status {
		case StatusResolved, StatusNameMatched:
			stats.Loaded++
		case StatusNotFound:
			stats.Missing++
		case StatusFailed:
			stats.Failed++
		case StatusNameUnverified:
			stats.Unverified++
		}
	}
	return stats
}

func (r Resolution) Item(ref domain.Reference) (ItemResult, bool) {
	for _, item := range r.Items {
		if item.Ref == ref {
			return item, true
		}
	}
	return ItemResult{}, false
}

func (r Resolution) UnitsFor(ref domain.Reference) ([]string, bool) {
	item, ok := r.Item(ref)
	if !ok {
		return nil, false
	}
	return item.Units()
}

// batchCall is one network fetch shared by every caller that asked for any
// of its ids while it was running. Its maps are written before done is
// closed and only read after.
type batchCall struct {
	done   chan struct{}
	found  map[string]domain.Ingredient
	failed map[string]error
}

func newBatchCall() *batchCall {
	return &batchCall{
		done:   make(chan struct{}),
		found:  make(map[string]domain.Ingredient),
		failed: make(map[string]error),
	}
}

func (c *batchCall) outcome(id string) ItemResult {
	ref := domain.ByID(id)
	if record, ok := c.found[id]; ok {
		return ItemResult{Ref: ref, Status: StatusResolved, Record: record}
	}
	if err, ok := c.failed[id]; ok {
		return ItemResult{Ref: ref, Status: StatusFailed, Err: err}
	}
	return ItemResult{Ref: ref, Status: StatusNotFound}
}

type nameMatch struct {
	record domain.Ingredient
	found  bool
}

type ResolverOption func(*Resolver)

func WithResolverLogger(logger *slog.Logger) ResolverOption {
	return func(r *Resolver) {
		r.logger = logger
	}
}

// WithLang sets the language used for legacy name lookups.
func WithLang(lang string) ResolverOption {
	return func(r *Resolver) {
		if lang = strings.ToLower(strings.TrimSpace(lang)); lang != "" {
			r.lang = lang
		}
	}
}

func WithFetchTimeout(timeout time.Duration) ResolverOption {
	return func(r *Resolver) {
		if timeout > 0 {
			r.fetchTimeout = timeout
		}
	}
}

func WithBatchSize(size int) ResolverOption {
	return func(r *Resolver) {
		if size > 0 {
			r.batchSize = min(size, MaxBatchSize)
		}
	}
}

func WithParallelBatches(n int) ResolverOption {
	return func(r *Resolver) {
		if n > 0 {
			r.parallel = int64(n)
		}
	}
}

// Resolver turns recipe references into catalog records for one session.
// Identifier lookups are batched and coalesced with concurrent callers; name
// lookups are best effort.
type Resolver struct {
	backend      Backend
	cache        *Cache
	logger       *slog.Logger
	lang         string
	fetchTimeout time.Duration
	batchSize    int
	parallel     int64

	mu       sync.Mutex
	inflight map[string]*batchCall
	missing  map[string]struct{}

	names    singleflight.Group
	nameMu   sync.RWMutex
	nameMemo map[string]nameMatch

	background sync.WaitGroup
}

func NewResolver(backend Backend, cache *Cache, opts ...ResolverOption) *Resolver {
	if cache == nil {
		cache = NewCache()
	}
	r := &Resolver{
		backend:      backend,
		cache:        cache,
		logger:       slog.Default(),
		lang:         domain.DefaultLang,
		fetchTimeout: defaultFetchTimeout,
		batchSize:    MaxBatchSize,
		parallel:     defaultParallelBatches,
		inflight:     make(map[string]*batchCall),
		missing:      make(map[string]struct{}),
		nameMemo:     make(map[string]nameMatch),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

func (r *Resolver) Cache() *Cache {
	return r.cache
}

// ResolveMany resolves refs and returns one ItemResult per ref. ctx bounds
// only this caller's wait: fetches run detached so that other callers
// sharing them still get their answer. The only error is ctx's.
func (r *Resolver) ResolveMany(ctx context.Context, refs []domain.Reference) (Resolution, error) {
	ids, names := partition(refs)

	known, pending := r.attach(ctx, ids)
	lookups := r.startNameLookups(ctx, names)

	for _, call := range pending {
		select {
		case <-call.done:
		case <-ctx.Done():
			return Resolution{}, ctx.Err()
		}
	}
	matches := make(map[string]ItemResult, len(lookups))
	for text, lookup := range lookups {
		item, err := lookup.wait(ctx, text)
		if err != nil {
			return Resolution{}, err
		}
		matches[text] = item
	}

	resolution := Resolution{
		Records: make(map[string]domain.Ingredient, len(ids)),
		Items:   make([]ItemResult, 0, len(refs)),
	}
	for _, ref := range refs {
		var item ItemResult
		if ref.Kind == domain.RefByID {
			if cached, ok := known[ref.Value]; ok {
				item = cached
			} else {
				item = pending[ref.Value].outcome(ref.Value)
			}
			if item.Status == StatusResolved {
				resolution.Records[ref.Value] = item.Record
			}
		} else {
			item = matches[ref.Value]
		}
		item.Ref = ref
		resolution.Items = append(resolution.Items, item)
	}
	return resolution, nil
}

// Lookup answers from session state without waiting. On a miss it starts a
// background resolution and reports false; the record reaches the cache
// subscribers when it arrives.
func (r *Resolver) Lookup(ref domain.Reference) (ItemResult, bool) {
	if ref.Kind == domain.RefByID {
		if record, ok := r.cache.Get(ref.Value); ok {
			return ItemResult{Ref: ref, Status: StatusResolved, Record: record}, true
		}
		r.mu.Lock()
		_, gone := r.missing[ref.Value]
		r.mu.Unlock()
		if gone {
			return ItemResult{Ref: ref, Status: StatusNotFound}, true
		}
	} else if match, ok := r.memoized(r.nameKey(ref.Value)); ok {
		return nameItem(ref, match, nil), true
	}
	r.Prefetch([]domain.Reference{ref})
	return ItemResult{Ref: ref, Status: StatusPending}, false
}

// Prefetch resolves refs in the background. The returned channel is closed
// when the work is done.
func (r *Resolver) Prefetch(refs []domain.Reference) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, err := r.ResolveMany(context.Background(), refs); err != nil {
			r.logger.Debug("ingredient prefetch failed", slog.String("error", err.Error()))
		}
	}()
	return done
}

// Wait blocks until every batch fetch started so far has finished.
func (r *Resolver) Wait() {
	r.background.Wait()
}

// attach splits ids into those answered from session state and those that
// wait on a batch call, starting one new call for ids nobody is fetching.
func (r *Resolver) attach(ctx context.Context, ids []string) (map[string]ItemResult, map[string]*batchCall) {
	known := make(map[string]ItemResult, len(ids))
	pending := make(map[string]*batchCall)

	uncached := make([]string, 0, len(ids))
	for _, id := range ids {
		if record, ok := r.cache.Get(id); ok {
			metrics.ResolverCacheTotal.WithLabelValues("hit").Inc()
			known[id] = ItemResult{Status: StatusResolved, Record: record}
			continue
		}
		uncached = append(uncached, id)
	}
	if len(uncached) == 0 {
		return known, pending
	}

	var call *batchCall
	fresh := make([]string, 0, len(uncached))

	r.mu.Lock()
	for _, id := range uncached {
		// A batch may have landed between the first cache read and the lock.
		if record, ok := r.cache.Get(id); ok {
			metrics.ResolverCacheTotal.WithLabelValues("hit").Inc()
			known[id] = ItemResult{Status: StatusResolved, Record: record}
			continue
		}
		if _, gone := r.missing[id]; gone {
			metrics.ResolverCacheTotal.WithLabelValues("hit").Inc()
			known[id] = ItemResult{Status: StatusNotFound}
			continue
		}
		metrics.ResolverCacheTotal.WithLabelValues("miss").Inc()
		if existing, ok := r.inflight[id]; ok {
			metrics.ResolverCoalescedTotal.Inc()
			pending[id] = existing
			continue
		}
		if call == nil {
			call = newBatchCall()
		}
		r.inflight[id] = call
		pending[id] = call
		fresh = append(fresh, id)
	}
	if call != nil {
		r.background.Add(1)
	}
	r.mu.Unlock()

	if call != nil {
		go r.runBatch(context.WithoutCancel(ctx), call, fresh)
	}
	return known, pending
}

func (r *Resolver) runBatch(parent context.Context, call *batchCall, ids []string) {
	defer r.background.Done()

	ctx, cancel := context.WithTimeout(parent, r.fetchTimeout)
	defer cancel()
	ctx, span := telemetry.Tracer().Start(ctx, "ingredients.resolve_batch",
		trace.WithAttributes(attribute.Int("ingredients.batch_size", len(ids))),
	)
	defer span.End()

	chunks := chunkIDs(ids, r.batchSize)
	sem := semaphore.NewWeighted(r.parallel)
	var (
		mu     sync.Mutex
		wg     sync.WaitGroup
		failed int
	)
	for _, chunk := range chunks {
		wg.Add(1)
		go func(chunk []string) {
			defer wg.Done()
			err := sem.Acquire(ctx, 1)
			var result domain.BatchResult
			if err == nil {
				result, err = r.backend.GetMany(ctx, chunk)
				sem.Release(1)
			}

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				failed++
				for _, id := range chunk {
					call.failed[id] = err
				}
				r.logger.Warn("ingredient batch fetch failed",
					slog.Int("ids", len(chunk)),
					slog.String("error", err.Error()),
				)
				return
			}
			requested := make(map[string]struct{}, len(chunk))
			for _, id := range chunk {
				requested[id] = struct{}{}
			}
			for _, record := range result.Ingredients {
				if _, ok := requested[record.ID]; ok {
					call.found[record.ID] = record
				}
			}
		}(chunk)
	}
	wg.Wait()

	for _, record := range call.found {
		r.cache.Put(record)
	}

	r.mu.Lock()
	for _, id := range ids {
		if r.inflight[id] == call {
			delete(r.inflight, id)
		}
		_, found := call.found[id]
		_, broken := call.failed[id]
		if !found && !broken {
			r.missing[id] = struct{}{}
		}
	}
	r.mu.Unlock()

	switch {
	case failed == 0:
		metrics.ResolverBatchesTotal.WithLabelValues("ok").Inc()
	case failed == len(chunks):
		metrics.ResolverBatchesTotal.WithLabelValues("failed").Inc()
		span.SetStatus(codes.Error, "all chunks failed")
	default:
		metrics.ResolverBatchesTotal.WithLabelValues("partial").Inc()
		span.SetStatus(codes.Error, "some chunks failed")
	}
	span.SetAttributes(
		attribute.Int("ingredients.found", len(call.found)),
		attribute.Int("ingredients.failed", len(call.failed)),
	)
	close(call.done)
}

type nameLookup struct {
	match nameMatch
	ready bool
	ch    <-chan singleflight.Result
}

func (l *nameLookup) wait(ctx context.Context, text string) (ItemResult, error) {
	ref := domain.ByName(text)
	if l.ready {
		return nameItem(ref, l.match, nil), nil
	}
	select {
	case res := <-l.ch:
		if res.Err != nil {
			return nameItem(ref, nameMatch{}, res.Err), nil
		}
		return nameItem(ref, res.Val.(nameMatch), nil), nil
	case <-ctx.Done():
		return ItemResult{}, ctx.Err()
	}
}

func nameItem(ref domain.Reference, match nameMatch, err error) ItemResult {
	if match.found {
		return ItemResult{Ref: ref, Status: StatusNameMatched, Record: match.record}
	}
	return ItemResult{Ref: ref, Status: StatusNameUnverified, Err: err}
}

func (r *Resolver) startNameLookups(ctx context.Context, names []string) map[string]*nameLookup {
	lookups := make(map[string]*nameLookup, len(names))
	for _, text := range names {
		lookup := &nameLookup{}
		lookups[text] = lookup
		if strings.TrimSpace(text) == "" {
			lookup.ready = true
			continue
		}
		key := r.nameKey(text)
		if match, ok := r.memoized(key); ok {
			lookup.match, lookup.ready = match, true
			continue
		}
		detached := context.WithoutCancel(ctx)
		lookup.ch = r.names.DoChan(key, func() (any, error) {
			return r.searchName(detached, key, text)
		})
	}
	return lookups
}

// searchName takes the first search hit for text as the match. Successful
// answers, including "no match", are remembered for the session; errors are
// not.
func (r *Resolver) searchName(parent context.Context, key, text string) (nameMatch, error) {
	ctx, cancel := context.WithTimeout(parent, r.fetchTimeout)
	defer cancel()

	results, err := r.backend.Search(ctx, domain.SearchQuery{
		Query: strings.TrimSpace(text),
		Lang:  r.lang,
		Limit: 1,
	})
	if err != nil {
		r.logger.Warn("ingredient name lookup failed",
			slog.String("name", text),
			slog.String("error", err.Error()),
		)
		return nameMatch{}, err
	}
	match := nameMatch{}
	if len(results) > 0 {
		match = nameMatch{record: results[0], found: true}
		r.cache.Put(results[0])
	}
	r.nameMu.Lock()
	r.nameMemo[key] = match
	r.nameMu.Unlock()
	return match, nil
}

func (r *Resolver) memoized(key string) (nameMatch, bool) {
	r.nameMu.RLock()
	defer r.nameMu.RUnlock()
	match, ok := r.nameMemo[key]
	return match, ok
}

func (r *Resolver) nameKey(text string) string {
	return r.lang + "\x00" + cases.Fold().String(strings.TrimSpace(text))
}

// partition returns the distinct ids and distinct names in first-seen order.
func partition(refs []domain.Reference) ([]string, []string) {
	ids := make([]string, 0, len(refs))
	names := make([]string, 0)
	seenIDs := make(map[string]struct{}, len(refs))
	seenNames := make(map[string]struct{})
	for _, ref := range refs {
		if ref.Kind == domain.RefByID {
			if _, ok := seenIDs[ref.Value]; !ok {
				seenIDs[ref.Value] = struct{}{}
				ids = append(ids, ref.Value)
			}
			continue
		}
		if _, ok := seenNames[ref.Value]; !ok {
			seenNames[ref.Value] = struct{}{}
			names = append(names, ref.Value)
		}
	}
	return ids, names
}

func chunkIDs(ids []string, size int) [][]string {
	if size <= 0 {
		size = MaxBatchSize
	}
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		chunks = append(chunks, ids[start:min(start+size, len(ids))])
	}
	return chunks
}
