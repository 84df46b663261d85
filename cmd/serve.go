// cmd/serve.go
/*
Copyright © 2025 Campus IT <mis@campusit.tw>
*/
package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/campusit/mfpusage/internal/fleet"
	"github.com/campusit/mfpusage/internal/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the usage API and xlsx exports over HTTP",
	Long: `Starts the HTTP server exposing the usage database as a JSON API
(/api/jobs, /api/counts, /api/leaders, /api/runs), xlsx downloads under
/export/, and POST /api/update to trigger a fleet sweep. A trigger while
a sweep is running is rejected with 409.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg := loadConfig()
		if serveAddr != "" {
			cfg.ListenAddr = serveAddr
		}
		st := openStore(cfg)
		defer st.Close()

		orch := fleet.New(cfg, st, Debug)
		srv := web.New(cfg, st, orch, newDirectory(cfg), Debug)

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		fmt.Printf("--- Serving usage API on %s ---\n", cfg.ListenAddr)
		if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(os.Stderr, "❌ Server error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (overrides the config)")
}
