package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/queryforge-dev/queryforge"
	"github.com/queryforge-dev/queryforge/pkg/observability"
)

const chatHelp = `Commands:
  /history          show recent queries
  /search <term>    search past queries
  /sessions         list known sessions
  /session <id>     switch to (and resume) a session
  /new              start a fresh session
  /help             show this help
  /quit             exit

Anything else is translated into a GraphQL query.`

func newChatCmd() *cobra.Command {
	var sessionID string
	var noMetrics bool

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive translation session",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			eng, err := queryforge.New(ctx, cfg)
			if err != nil {
				return err
			}
			defer func() { _ = eng.Close() }()

			g, ctx := errgroup.WithContext(ctx)

			var obsServer *observability.Server
			if !noMetrics {
				obsServer = newObservabilityServer(eng, cfg.MetricsPort)
				g.Go(func() error {
					log.Printf("metrics on :%d/metrics", cfg.MetricsPort)
					if err := obsServer.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
			}

			g.Go(func() error {
				defer stop()
				return runREPL(ctx, eng, sessionID)
			})

			g.Go(func() error {
				<-ctx.Done()
				if obsServer != nil {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = obsServer.Shutdown(shutdownCtx)
				}
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = observability.ShutdownTracing(shutdownCtx)
				return nil
			})

			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&sessionID, "session", "", "session to resume")
	cmd.Flags().BoolVar(&noMetrics, "no-metrics", false, "disable the metrics endpoint")
	return cmd
}

func runREPL(ctx context.Context, eng *queryforge.Engine, sessionID string) error {
	if sessionID == "" {
		sessionID = eng.NewSessionID()
	}

	line := liner.NewLiner()
	defer func() { _ = line.Close() }()
	line.SetCtrlCAborts(true)

	historyFile := filepath.Join(os.TempDir(), ".queryforge_history")
	if f, err := os.Open(historyFile); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}
	defer func() {
		if f, err := os.Create(historyFile); err == nil {
			_, _ = line.WriteHistory(f)
			_ = f.Close()
		}
	}()

	fmt.Printf("session %s (type /help for commands)\n", sessionID)

	for {
		if ctx.Err() != nil {
			return nil
		}

		input, err := line.Prompt("> ")
		if err != nil {
			if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}

		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		line.AppendHistory(input)

		if strings.HasPrefix(input, "/") {
			if quit := runCommand(ctx, eng, &sessionID, input); quit {
				return nil
			}
			continue
		}

		result, err := eng.Ask(ctx, sessionID, input)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			continue
		}
		printResult(result)
	}
}

// runCommand handles slash commands. Returns true to exit the REPL.
func runCommand(ctx context.Context, eng *queryforge.Engine, sessionID *string, input string) bool {
	cmd, arg, _ := strings.Cut(input, " ")
	arg = strings.TrimSpace(arg)

	switch cmd {
	case "/quit", "/exit":
		return true

	case "/help":
		fmt.Println(chatHelp)

	case "/new":
		*sessionID = eng.NewSessionID()
		fmt.Printf("session %s\n", *sessionID)

	case "/session":
		if arg == "" {
			fmt.Printf("current session: %s\n", *sessionID)
			break
		}
		*sessionID = arg
		fmt.Printf("switched to session %s\n", arg)

	case "/history":
		records, err := eng.Recent(ctx, 20)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			break
		}
		printRecords(records)

	case "/search":
		if arg == "" {
			fmt.Println("usage: /search <term>")
			break
		}
		records, err := eng.Search(ctx, arg, 20)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			break
		}
		printRecords(records)

	case "/sessions":
		sessions, err := eng.Sessions(ctx)
		if err != nil {
			fmt.Printf("error: %v\n", err)
			break
		}
		if len(sessions) == 0 {
			fmt.Println("no sessions recorded")
			break
		}
		for _, s := range sessions {
			fmt.Printf("%s  last active %s\n", s.ID, s.LastActive.Format("2006-01-02 15:04"))
		}

	default:
		fmt.Printf("unknown command %s (try /help)\n", cmd)
	}
	return false
}
