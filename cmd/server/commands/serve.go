package commands

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/labstack/gommon/log"
	"github.com/spf13/cobra"

	"weodash/internal/api"
	"weodash/internal/config"
	"weodash/internal/session"
)

func serveCmd() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the dashboard API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if listen != "" {
				conf.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			// An unreadable spreadsheet is fatal before the port opens;
			// sessions re-read it on their own afterwards.
			t0 := time.Now()
			table, err := loadTable(ctx)
			if err != nil {
				return err
			}
			log.Infof("startup check: %d records in %v", table.Len(), time.Since(t0))

			e := echo.New()
			e.HideBanner = true
			e.JSONSerializer = api.JSONSerializer{}
			e.Logger.SetLevel(log.Level())
			e.Use(middleware.CORS())
			e.Use(middleware.Recover())
			e.Use(middleware.Logger())

			sessions := session.NewRegistry(loadTable,
				session.WithIdleTTL(conf.Sessions.IdleTTL),
				session.WithMaxSessions(conf.Sessions.Max),
			)
			h := api.NewHandler(sessions, conf.Vintages)
			h.RegisterRoutes(e)

			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				if err := e.Shutdown(shutdownCtx); err != nil {
					e.Logger.Error(err)
				}
			}()

			log.Infof("server ready on %s (data: %s)", conf.Listen, conf.DataPath)
			if err := e.Start(conf.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "listen address (default from config, else "+config.DefaultListen+")")
	return cmd
}
