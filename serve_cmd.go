package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/chifron/chifron/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP service (default)",
	Long: paragraph("\n" + keyword("Serve") + " number lookups over HTTP. " +
		"Stops gracefully on SIGINT or SIGTERM."),
	Example: paragraph("chifron serve\nchifron serve --addr :8080 --engine mock"),
	Args:    cobra.NoArgs,
	RunE:    runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Warn("Failed to close engine", "err", err)
		}
	}()

	srv, err := server.New(cfg, a.numbers, a.store)
	if err != nil {
		return err
	}
	return srv.ListenAndServe(ctx)
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (default from config, :5000)")
	_ = viper.BindPFlag("server.addr", serveCmd.Flags().Lookup("addr"))
}
