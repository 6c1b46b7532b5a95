// Command recap summarizes chat history over a time window, either once from
// the command line or on a recurring digest schedule. Backends are selected
// through environment variables so the same binary serves a laptop demo and a
// production deployment.
//
// Environment:
//
//	RECAP_STORE            memory | postgres | mongo      (default memory)
//	RECAP_CACHE            memory | postgres | mongo      (default memory)
//	RECAP_POSTGRES_URL     connection string for postgres backends
//	RECAP_MONGO_URL        connection string for mongo backends
//	RECAP_MONGO_DB         mongo database name            (default recap)
//	RECAP_MODEL_PROVIDER   openai | anthropic | ollama | gemini | dummy
//	RECAP_EMBED_PROVIDER   openai | fastembed | dummy     (empty disables)
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/Protocol-Lattice/go-recap/src/cache"
	"github.com/Protocol-Lattice/go-recap/src/embed"
	"github.com/Protocol-Lattice/go-recap/src/model"
	"github.com/Protocol-Lattice/go-recap/src/models"
	"github.com/Protocol-Lattice/go-recap/src/schedule"
	"github.com/Protocol-Lattice/go-recap/src/store"
	"github.com/Protocol-Lattice/go-recap/src/summarizer"
)

var (
	flagRange string
	flagUser  string
	flagStyle string
	flagSpec  string
)

var rootCmd = &cobra.Command{
	Use:   "recap",
	Short: "Token-bounded hierarchical chat summarization",
}

var summarizeCmd = &cobra.Command{
	Use:   "summarize",
	Short: "Summarize one time window and print the result",
	RunE:  runSummarize,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run a recurring digest on a cron schedule",
	RunE:  runServe,
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Summarize a built-in fixture offline, no API keys needed",
	RunE:  runDemo,
}

func init() {
	for _, cmd := range []*cobra.Command{summarizeCmd, serveCmd} {
		cmd.Flags().StringVar(&flagRange, "range", "3h", "window to summarize, e.g. 3h or 1d")
		cmd.Flags().StringVar(&flagUser, "user", "", "restrict the summary to one author")
		cmd.Flags().StringVar(&flagStyle, "style", "brief", "summary style: brief or detailed")
	}
	serveCmd.Flags().StringVar(&flagSpec, "cron", "0 9 * * *", "cron expression for digest firing")
	rootCmd.AddCommand(summarizeCmd, serveCmd, demoCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSummarize(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	s, err := buildSummarizer(ctx)
	if err != nil {
		return err
	}

	res, err := s.SummarizeWindow(ctx, flagRange, flagUser)
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := buildSummarizer(ctx)
	if err != nil {
		return err
	}

	svc := schedule.NewService(s, func(job schedule.DigestJob, res *summarizer.Result, err error) {
		switch {
		case err != nil:
			log.Printf("digest %s: %v", job.Name, err)
		default:
			fmt.Printf("=== digest %s ===\n", job.Name)
			printResult(res)
		}
	})

	jobs := []schedule.DigestJob{{
		Name:  "digest",
		Spec:  flagSpec,
		Range: flagRange,
		User:  flagUser,
	}}
	if err := svc.Start(ctx, jobs); err != nil {
		return err
	}

	<-ctx.Done()
	svc.Stop()
	return nil
}

func runDemo(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	messages := store.NewInMemoryStore()
	now := time.Now()
	fixture := []struct {
		author, content string
		minutesAgo      int
	}{
		{"ada", "Morning all, the deploy to staging just went out.", 55},
		{"grace", "Seeing elevated p99 latency on the search endpoint since then.", 50},
		{"ada", "Rolling back while we look at the flame graphs.", 45},
		{"linus", "The regression is in the new tokenizer path, fix incoming.", 30},
		{"grace", "Confirmed, latency back to baseline after the rollback.", 20},
		{"linus", "Fix merged, will redeploy tomorrow morning.", 5},
	}
	for i, f := range fixture {
		msg := model.Message{
			ID:            fmt.Sprintf("demo-%d", i+1),
			Author:        f.author,
			Content:       f.content,
			GroupID:       "demo",
			TimestampUnix: now.Add(-time.Duration(f.minutesAgo) * time.Minute).Unix(),
		}
		if err := messages.StoreMessage(ctx, msg); err != nil {
			return err
		}
	}

	s := summarizer.New(messages, models.NewDummyLLM("Recap:"))
	res, err := s.SummarizeWindow(ctx, "1h", "")
	if err != nil {
		return err
	}
	printResult(res)
	return nil
}

// buildSummarizer wires the store, cache, model, and embedder selected by the
// environment into one summarizer.
func buildSummarizer(ctx context.Context) (*summarizer.RecursiveSummarizer, error) {
	messages, err := buildMessageStore(ctx)
	if err != nil {
		return nil, err
	}

	tier2, err := buildCacheStore(ctx)
	if err != nil {
		return nil, err
	}

	agent, err := models.FromEnv(ctx, summarizer.SystemPrompt)
	if err != nil {
		return nil, err
	}

	style := summarizer.StyleBrief
	if strings.EqualFold(flagStyle, "detailed") {
		style = summarizer.StyleDetailed
	}

	opts := []summarizer.Option{
		summarizer.WithCache(cache.NewMultiLevelCache(1000, 24*time.Hour, tier2)),
		summarizer.WithStyle(style),
	}
	if e := embed.AutoEmbedder(); e != nil {
		opts = append(opts, summarizer.WithEmbedder(e))
	}

	return summarizer.New(messages, agent, opts...), nil
}

func buildMessageStore(ctx context.Context) (store.MessageStore, error) {
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("RECAP_STORE")))
	switch backend {
	case "", "memory":
		return store.NewInMemoryStore(), nil
	case "postgres":
		return store.NewPostgresStore(ctx, os.Getenv("RECAP_POSTGRES_URL"))
	case "mongo":
		return store.NewMongoStore(ctx, os.Getenv("RECAP_MONGO_URL"), mongoDatabase(), "messages")
	default:
		return nil, fmt.Errorf("unknown RECAP_STORE %q", backend)
	}
}

func buildCacheStore(ctx context.Context) (cache.Store, error) {
	backend := strings.ToLower(strings.TrimSpace(os.Getenv("RECAP_CACHE")))
	switch backend {
	case "", "memory":
		return nil, nil
	case "postgres":
		return cache.NewPostgresStore(ctx, os.Getenv("RECAP_POSTGRES_URL"))
	case "mongo":
		return cache.NewMongoStore(ctx, os.Getenv("RECAP_MONGO_URL"), mongoDatabase(), "summary_cache")
	default:
		return nil, fmt.Errorf("unknown RECAP_CACHE %q", backend)
	}
}

func mongoDatabase() string {
	if db := strings.TrimSpace(os.Getenv("RECAP_MONGO_DB")); db != "" {
		return db
	}
	return "recap"
}

func printResult(res *summarizer.Result) {
	fmt.Printf("window  %s — %s\n",
		res.Summary.TimeRangeStart.Format("2006-01-02 15:04:05"),
		res.Summary.TimeRangeEnd.Format("2006-01-02 15:04:05"))
	fmt.Printf("covers  %d messages", res.Summary.MessageCount)
	if res.Truncated {
		fmt.Printf(" (window truncated to cap)")
	}
	if res.Quarantined > 0 {
		fmt.Printf(", %d malformed skipped", res.Quarantined)
	}
	fmt.Println()
	fmt.Println()
	fmt.Println(res.Summary.Content)
}
