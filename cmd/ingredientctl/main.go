package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"recipebook/ingredientservice/internal/app"
	"recipebook/ingredientservice/internal/client"
	"recipebook/ingredientservice/internal/domain"
)

type cliOptions struct {
	baseURL string
	lang    string
	timeout time.Duration
	asJSON  bool
	logger  *slog.Logger
}

func (o *cliOptions) api() *client.APIClient {
	return client.NewAPIClient(client.APIConfig{
		BaseURL: o.baseURL,
		Timeout: o.timeout,
	})
}

func main() {
	cfg := app.LoadClientConfig()
	if err := newRootCmd(cfg).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(cfg app.ClientConfig) *cobra.Command {
	opts := &cliOptions{
		logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(cfg.LogLevel)})),
	}
	root := &cobra.Command{
		Use:           "ingredientctl",
		Short:         "Query a running ingredient catalog service",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	root.PersistentFlags().StringVar(&opts.baseURL, "url", cfg.BaseURL, "ingredient service base URL")
	root.PersistentFlags().StringVar(&opts.lang, "lang", cfg.Lang, "display language")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", cfg.RequestTimeout, "per-request timeout")
	root.PersistentFlags().BoolVar(&opts.asJSON, "json", false, "print JSON instead of a table")

	root.AddCommand(
		newResolveCmd(opts),
		newSearchCmd(opts),
		newCategoryCmd(opts),
		newCategoriesCmd(opts),
	)
	return root
}

func newResolveCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve <ref>...",
		Short: "Resolve recipe ingredient references (6-digit ids or legacy names)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resolver := client.NewResolver(opts.api(), client.NewCache(),
				client.WithLang(opts.lang),
				client.WithFetchTimeout(opts.timeout),
				client.WithResolverLogger(opts.logger),
			)
			defer resolver.Wait()

			resolution, err := resolver.ResolveMany(cmd.Context(), domain.ParseReferences(args))
			if err != nil {
				return err
			}
			return printResolution(cmd.OutOrStdout(), resolution, opts.lang, opts.asJSON)
		},
	}
}

func newSearchCmd(opts *cliOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Show typeahead suggestions for a query",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			state, err := suggest(cmd.Context(), opts, query, limit)
			if err != nil {
				return err
			}
			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), state.Suggestions)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tCATEGORY")
			for _, s := range state.Suggestions {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", s.ID, s.Name, s.Category)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", client.DefaultSuggestionLimit, "maximum number of suggestions")
	return cmd
}

// suggest runs one query through the typeahead controller without a quiet
// period and waits for it to settle.
func suggest(ctx context.Context, opts *cliOptions, query string, limit int) (client.SearchState, error) {
	if len([]rune(strings.TrimSpace(query))) < client.MinQueryLength {
		return client.SearchState{}, fmt.Errorf("query must have at least %d characters", client.MinQueryLength)
	}
	controller := client.NewSearchController(opts.api(),
		client.WithDebounce(0),
		client.WithSuggestionLimit(limit),
		client.WithSearchLang(opts.lang),
		client.WithSearchLogger(opts.logger),
	)
	defer controller.Close()

	done := make(chan client.SearchState, 1)
	unsubscribe := controller.Subscribe(func(state client.SearchState) {
		if state.Phase == client.PhaseSettled || state.Phase == client.PhaseFailed {
			select {
			case done <- state:
			default:
			}
		}
	})
	defer unsubscribe()

	controller.Input(query)
	select {
	case state := <-done:
		if state.Phase == client.PhaseFailed {
			return state, state.Err
		}
		return state, nil
	case <-ctx.Done():
		return client.SearchState{}, ctx.Err()
	case <-time.After(opts.timeout + time.Second):
		return client.SearchState{}, errors.New("search timed out")
	}
}

func newCategoryCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "category <name>",
		Short: "List the ingredients of a category",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := opts.api().ByCategory(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), items)
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tUNITS")
			for _, item := range items {
				fmt.Fprintf(tw, "%s\t%s\t%s\n", item.ID, item.DisplayName(opts.lang), strings.Join(item.AllowedUnits, ", "))
			}
			return tw.Flush()
		},
	}
}

func newCategoriesCmd(opts *cliOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List the catalog categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			categories, err := opts.api().Categories(cmd.Context())
			if err != nil {
				return err
			}
			if opts.asJSON {
				return writeJSON(cmd.OutOrStdout(), categories)
			}
			for _, category := range categories {
				fmt.Fprintln(cmd.OutOrStdout(), category)
			}
			return nil
		},
	}
}

type resolvedLine struct {
	Ref    string   `json:"ref"`
	Kind   string   `json:"kind"`
	Status string   `json:"status"`
	ID     string   `json:"id,omitempty"`
	Name   string   `json:"name,omitempty"`
	Units  []string `json:"units,omitempty"`
	Error  string   `json:"error,omitempty"`
}

func printResolution(w io.Writer, resolution client.Resolution, lang string, asJSON bool) error {
	lines := make([]resolvedLine, 0, len(resolution.Items))
	for _, item := range resolution.Items {
		line := resolvedLine{
			Ref:    item.Ref.Value,
			Kind:   item.Ref.Kind.String(),
			Status: item.Status.String(),
		}
		if item.HasRecord() {
			line.ID = item.Record.ID
			line.Name = item.Record.DisplayName(lang)
			line.Units, _ = item.Units()
		}
		if item.Err != nil {
			line.Error = item.Err.Error()
		}
		lines = append(lines, line)
	}
	if asJSON {
		return writeJSON(w, lines)
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REF\tSTATUS\tID\tNAME\tUNITS")
	for _, line := range lines {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", line.Ref, line.Status, line.ID, line.Name, strings.Join(line.Units, ", "))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	stats := resolution.Stats()
	_, err := fmt.Fprintf(w, "\n%d/%d loaded, %d missing, %d failed, %d by name\n",
		stats.Loaded, stats.Total, stats.Missing, stats.Failed, stats.ByName)
	return err
}

func writeJSON(w io.Writer, payload any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(payload)
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
