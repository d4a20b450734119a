package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/derickschaefer/bankview/internal/server"
)

var (
	serveAddr  string
	serveRate  float64
	serveBurst int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the dashboard as a local JSON API",
	Long: `Starts an HTTP server exposing the dashboard:

  GET  /healthz              liveness check
  GET  /api/banks            largest banks and the default selection
  GET  /api/table?bank=...   wide table for the selected banks
  GET  /api/charts?bank=...  chart specifications for the selected banks
  POST /api/charts           chart specifications for a posted (edited) table

Repeat the bank parameter to select several banks; names are matched
exactly, case-insensitively, or fuzzily against the listing. No bank
parameter means the empty selection. The server stops on Ctrl-C.`,
	Example: `  bankview serve
  bankview serve --addr :9000 --request-rate 5
  curl 'http://127.0.0.1:8050/api/charts?bank=chase&bank=citibank'`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		deps, err := buildDeps()
		if err != nil {
			return err
		}
		defer deps.Close()
		if err := deps.RequireDashboard(); err != nil {
			return err
		}

		addr := deps.Config.Addr
		if serveAddr != "" {
			addr = serveAddr
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv := server.New(deps.Dashboard, server.Options{
			RatePerSec: serveRate,
			Burst:      serveBurst,
			Logger:     slog.Default(),
		})
		if !deps.Config.Quiet {
			fmt.Fprintf(os.Stderr, "Serving on http://%s (Ctrl-C to stop)\n", addr)
		}
		return srv.ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default: config addr, 127.0.0.1:8050)")
	serveCmd.Flags().Float64Var(&serveRate, "request-rate", 0, "max requests per second across all clients (0 = unlimited)")
	serveCmd.Flags().IntVar(&serveBurst, "burst", 0, "request burst size (default: the request rate)")
	rootCmd.AddCommand(serveCmd)
}
