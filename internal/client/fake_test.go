package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"recipebook/ingredientservice/internal/domain"
)

var errBackendDown = errors.New("backend unavailable")

// fakeBackend serves a fixed catalog and records every call. When gate is
// set, GetMany blocks until it is closed; started receives one value per
// GetMany call that has begun.
type fakeBackend struct {
	records []domain.Ingredient

	mu          sync.Mutex
	batchCalls  [][]string
	searchCalls []domain.SearchQuery
	failIDs     map[string]bool
	searchErr   error
	fetchErrs   []error

	gate    chan struct{}
	started chan struct{}
}

func newFakeBackend(records ...domain.Ingredient) *fakeBackend {
	return &fakeBackend{
		records: records,
		started: make(chan struct{}, 64),
	}
}

func (f *fakeBackend) GetMany(ctx context.Context, ids []string) (domain.BatchResult, error) {
	f.mu.Lock()
	f.batchCalls = append(f.batchCalls, append([]string(nil), ids...))
	gate := f.gate
	failing := f.failIDs
	f.mu.Unlock()
	f.started <- struct{}{}

	if gate != nil {
		<-gate
	}
	if err := ctx.Err(); err != nil {
		f.mu.Lock()
		f.fetchErrs = append(f.fetchErrs, err)
		f.mu.Unlock()
		return domain.BatchResult{}, err
	}

	result := domain.BatchResult{Ingredients: []domain.Ingredient{}, Missing: []string{}}
	for _, id := range ids {
		if failing[id] {
			return domain.BatchResult{}, errBackendDown
		}
	}
	for _, id := range ids {
		record, ok := f.find(id)
		if !ok {
			result.Missing = append(result.Missing, id)
			continue
		}
		result.Ingredients = append(result.Ingredients, record)
	}
	return result, nil
}

func (f *fakeBackend) Search(_ context.Context, query domain.SearchQuery) ([]domain.Ingredient, error) {
	f.mu.Lock()
	f.searchCalls = append(f.searchCalls, query)
	err := f.searchErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}

	needle := strings.ToLower(strings.TrimSpace(query.Query))
	out := make([]domain.Ingredient, 0)
	for _, record := range f.records {
		if strings.Contains(strings.ToLower(record.DisplayName(query.Lang)), needle) {
			out = append(out, record)
		}
		if query.Limit > 0 && len(out) == query.Limit {
			break
		}
	}
	return out, nil
}

func (f *fakeBackend) setFailing(ids ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failIDs = make(map[string]bool, len(ids))
	for _, id := range ids {
		f.failIDs[id] = true
	}
}

func (f *fakeBackend) setSearchErr(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchErr = err
}

func (f *fakeBackend) find(id string) (domain.Ingredient, bool) {
	for _, record := range f.records {
		if record.ID == id {
			return record, true
		}
	}
	return domain.Ingredient{}, false
}

func (f *fakeBackend) batches() [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]string(nil), f.batchCalls...)
}

func (f *fakeBackend) searches() []domain.SearchQuery {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.SearchQuery(nil), f.searchCalls...)
}

func waitSignal(ch <-chan struct{}, timeout time.Duration) bool {
	select {
	case <-ch:
		return true
	case <-time.After(timeout):
		return false
	}
}

func testCatalog() []domain.Ingredient {
	return []domain.Ingredient{
		sampleIngredient("000001", "Tomate", "Verduras", "g", "unidad"),
		sampleIngredient("000002", "Leche", "Lácteos", "ml", "l"),
		sampleIngredient("000003", "Harina", "Cereales", "g", "kg"),
		sampleIngredient("000004", "Huevo", "Proteínas", "unidad"),
		sampleIngredient("000005", "Tomate cherry", "Verduras", "g"),
	}
}
