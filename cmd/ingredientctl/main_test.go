package main

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	apihttp "recipebook/ingredientservice/internal/api/http"
	"recipebook/ingredientservice/internal/app"
	"recipebook/ingredientservice/internal/catalog"
	"recipebook/ingredientservice/internal/domain"
)

func startService(t *testing.T) string {
	t.Helper()
	store, err := catalog.NewStore([]domain.Ingredient{
		{ID: "000001", Names: map[string]string{"es": "Tomate", "en": "Tomato"}, Category: "Verduras", AllowedUnits: []string{"g", "unidad"}},
		{ID: "000002", Names: map[string]string{"es": "Sal"}, Category: "Especias", AllowedUnits: []string{"g", "pizca"}},
		{ID: "000003", Names: map[string]string{"es": "Salsa de soja"}, Category: "Salsas", AllowedUnits: []string{"ml"}},
	})
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	srv := httptest.NewServer(apihttp.NewServer(store).Handler())
	t.Cleanup(srv.Close)
	return srv.URL
}

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd(app.ClientConfig{
		BaseURL:        "http://127.0.0.1:1",
		RequestTimeout: 2 * time.Second,
		Lang:           "es",
		LogLevel:       "error",
	})
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestResolveCommand(t *testing.T) {
	url := startService(t)

	out, err := runCLI(t, "--url", url, "resolve", "000001", "999999", "sal")
	if err != nil {
		t.Fatalf("resolve: %v\n%s", err, out)
	}
	for _, want := range []string{"Tomate", "not_found", "name_matched", "2/3 loaded, 1 missing, 0 failed, 1 by name"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestResolveCommandJSON(t *testing.T) {
	url := startService(t)

	out, err := runCLI(t, "--url", url, "--json", "--lang", "en", "resolve", "000001")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	var lines []resolvedLine
	if err := json.Unmarshal([]byte(out), &lines); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(lines) != 1 || lines[0].Name != "Tomato" || lines[0].Status != "resolved" || lines[0].Kind != "id" {
		t.Fatalf("unexpected lines: %+v", lines)
	}
}

func TestSearchCommandRanksSuggestions(t *testing.T) {
	url := startService(t)

	out, err := runCLI(t, "--url", url, "--json", "search", "sal")
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	var suggestions []domain.Suggestion
	if err := json.Unmarshal([]byte(out), &suggestions); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	if len(suggestions) != 2 || suggestions[0].ID != "000002" {
		t.Fatalf("expected exact match first, got %+v", suggestions)
	}
}

func TestSearchCommandRejectsShortQuery(t *testing.T) {
	if _, err := runCLI(t, "search", "s"); err == nil {
		t.Fatal("expected an error for a one-character query")
	}
}

func TestCategoryCommands(t *testing.T) {
	url := startService(t)

	out, err := runCLI(t, "--url", url, "category", "especias")
	if err != nil {
		t.Fatalf("category: %v", err)
	}
	if !strings.Contains(out, "Sal") || strings.Contains(out, "Tomate") {
		t.Fatalf("unexpected category output:\n%s", out)
	}

	out, err = runCLI(t, "--url", url, "categories")
	if err != nil {
		t.Fatalf("categories: %v", err)
	}
	if strings.TrimSpace(out) != "Verduras\nEspecias\nSalsas" {
		t.Fatalf("unexpected categories output:\n%s", out)
	}
}
