package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/queryforge-dev/queryforge"
	"github.com/queryforge-dev/queryforge/pkg/config"
	"github.com/queryforge-dev/queryforge/pkg/history"
	"github.com/queryforge-dev/queryforge/pkg/observability"
)

// Version information (set via ldflags)
var Version = "dev"

var (
	configFile string
	schemaPath string
	provider   string
	model      string
)

func main() {
	root := &cobra.Command{
		Use:          "queryforge",
		Short:        "Translate natural-language questions into GraphQL queries",
		Version:      Version,
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", os.Getenv("QUERYFORGE_CONFIG"), "configuration file")
	root.PersistentFlags().StringVar(&schemaPath, "schema", "", "schema JSON file (overrides config)")
	root.PersistentFlags().StringVar(&provider, "provider", "", "model provider: openai, gemini, bedrock (overrides config)")
	root.PersistentFlags().StringVar(&model, "model", "", "model name (overrides config)")

	root.AddCommand(
		newAskCmd(),
		newChatCmd(),
		newHistoryCmd(),
		newSearchCmd(),
		newSessionsCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig merges the config file with command-line overrides.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	if configFile != "" {
		var err error
		cfg, err = config.Load(configFile)
		if err != nil {
			return nil, err
		}
	} else {
		cfg = config.Default()
	}

	if schemaPath != "" {
		cfg.SchemaPath = schemaPath
	}
	if provider != "" {
		cfg.Provider = provider
	}
	if model != "" {
		cfg.Model = model
	}
	return cfg, nil
}

func newEngine(ctx context.Context) (*queryforge.Engine, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return queryforge.New(ctx, cfg)
}

func newAskCmd() *cobra.Command {
	var sessionID string

	cmd := &cobra.Command{
		Use:   "ask <question>",
		Short: "Translate a single question",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, err := newEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			if sessionID == "" {
				sessionID = eng.NewSessionID()
			}

			question := joinArgs(args)
			result, err := eng.Ask(ctx, sessionID, question)
			if err != nil {
				return err
			}
			printResult(result)
			return nil
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session to continue (default: a fresh one)")
	return cmd
}

func newHistoryCmd() *cobra.Command {
	var limit int
	var sessionID string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent translated queries",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, err := newEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			var records []*history.Record
			if sessionID != "" {
				records, err = eng.SessionHistory(ctx, sessionID, limit)
			} else {
				records, err = eng.Recent(ctx, limit)
			}
			if err != nil {
				return err
			}
			printRecords(records)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum records to show")
	cmd.Flags().StringVar(&sessionID, "session", "", "restrict to one session")
	return cmd
}

func newSearchCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "search <term>",
		Short: "Search past queries and explanations",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, err := newEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			records, err := eng.Search(ctx, joinArgs(args), limit)
			if err != nil {
				return err
			}
			printRecords(records)
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum records to show")
	return cmd
}

func newSessionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List sessions seen by the history store",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			eng, err := newEngine(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			sessions, err := eng.Sessions(ctx)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Println("no sessions recorded")
				return nil
			}
			for _, s := range sessions {
				fmt.Printf("%s  last active %s\n", s.ID, s.LastActive.Format(time.RFC3339))
			}
			return nil
		},
	}
}

func printResult(r queryforge.Result) {
	if r.Query != "" {
		fmt.Println(r.Query)
	}
	if r.Variables != "" && r.Variables != "{}" {
		fmt.Printf("variables: %s\n", r.Variables)
	}
	if r.Explanation != "" {
		fmt.Printf("explanation: %s\n", r.Explanation)
	}
}

func printRecords(records []*history.Record) {
	if len(records) == 0 {
		fmt.Println("no records found")
		return
	}
	for _, r := range records {
		fmt.Printf("[%s] %s\n", r.Timestamp.Format("2006-01-02 15:04"), r.UserQuery)
		if r.GraphQLQuery != "" {
			fmt.Printf("    %s\n", r.GraphQLQuery)
		}
		if r.Explanation != "" {
			fmt.Printf("    %s\n", r.Explanation)
		}
	}
}

func joinArgs(args []string) string {
	out := args[0]
	for _, a := range args[1:] {
		out += " " + a
	}
	return out
}

func newObservabilityServer(eng *queryforge.Engine, port int) *observability.Server {
	observability.InitMetrics()
	if err := observability.InitTracingFromEnv(); err != nil {
		log.Printf("tracing init failed: %v", err)
	}

	srv := observability.NewServer(port)
	srv.AddReadinessCheck(eng.Ping)
	return srv
}
