package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/KaramelBytes/dashloom-cli/internal/ai"
	"github.com/KaramelBytes/dashloom-cli/internal/server"
)

var (
	serveAddr     string
	serveProvider string
	serveNoAI     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the preview/finalize/aggregate/suggest pipeline over HTTP",
	RunE: func(cmd *cobra.Command, args []string) error {
		addr := serveAddr
		if addr == "" && cfg != nil {
			addr = cfg.ServeAddr
		}
		if addr == "" {
			addr = "127.0.0.1:8080"
		}

		var sug server.Suggester
		if !serveNoAI {
			s, providerName, err := buildSuggester(nil, cfg, suggesterOptions{runtimeOptions: runtimeOptions{ProviderFlag: serveProvider}})
			if err != nil {
				fmt.Fprintf(os.Stderr, "⚠ AI suggestions disabled: %v\n", err)
			} else if providerName != ai.ProviderOllama && apiKeyFor(cfg, providerName) == "" {
				fmt.Fprintf(os.Stderr, "⚠ AI suggestions disabled: no API key for %s\n", providerName)
			} else {
				sug = s
			}
		}

		ctx, stop := signal.NotifyContext(contextOr(cmd), os.Interrupt, syscall.SIGTERM)
		defer stop()
		fmt.Printf("✓ Listening on http://%s\n", addr)
		return server.New(slog.Default(), sug, ai.Hint).ListenAndServe(ctx, addr)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config serve_addr)")
	serveCmd.Flags().StringVar(&serveProvider, "provider", "", "AI provider for /api/suggest")
	serveCmd.Flags().BoolVar(&serveNoAI, "no-ai", false, "disable /api/suggest")
}
