package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/vogtb/go-spreadsheet/packages/formula/internal/server"
	"github.com/vogtb/go-spreadsheet/packages/formula/internal/store"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		addr         string
		storePath    string
		workbookPath string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve a workbook over HTTP",
		Long: `Serve a workbook over a JSON API until interrupted.

With a store path, every cell write is persisted to a bbolt file and the
stored sheets are restored on startup. --workbook seeds the workbook from
TOML before the store is restored.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			if addr != "" {
				cfg.Server.Addr = addr
			}
			if storePath != "" {
				cfg.Store.Path = storePath
			}

			wb, err := openWorkbook(cfg, logger, workbookPath)
			if err != nil {
				return err
			}

			var st *store.Store
			if cfg.Store.Path != "" {
				st, err = store.Open(cfg.Store.Path, logger.Named("store"))
				if err != nil {
					return err
				}
				defer st.Close()
				if err := st.Restore(wb); err != nil {
					return err
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serveUntilDone(ctx, server.New(wb, st, logger.Named("server")), cfg.Server.Addr, logger)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, "+`":8080"`+")")
	cmd.Flags().StringVar(&storePath, "store", "", "bbolt file cells are persisted to")
	cmd.Flags().StringVarP(&workbookPath, "workbook", "w", "", "TOML workbook to seed the server with")
	return cmd
}

func serveUntilDone(ctx context.Context, srv *server.Server, addr string, logger *zap.Logger) error {
	if err := srv.Run(ctx, addr); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
