package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/darkstore/app"
	"github.com/kilianp07/darkstore/config"
	"github.com/kilianp07/darkstore/core/control"
	"github.com/kilianp07/darkstore/infra/logger"
)

var cfgPath string

var rootCmd = &cobra.Command{
	Use:          "darkstore",
	Short:        "Dark store picking and delivery dispatch service",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, _, closeFn, err := open(ctx)
	if err != nil {
		return err
	}
	defer closeFn()
	return svc.Run(ctx)
}

// open loads the configuration, sets up logging and builds the service.
func open(ctx context.Context) (*app.Service, *config.Config, func(), error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load config: %w", err)
	}
	logCloser, err := logger.Configure(cfg.Logging.Options())
	if err != nil {
		return nil, nil, nil, fmt.Errorf("configure logging: %w", err)
	}
	svc, err := app.New(ctx, cfg)
	if err != nil {
		_ = logCloser.Close()
		return nil, nil, nil, err
	}
	return svc, cfg, func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
		_ = logCloser.Close()
	}, nil
}

// printResult writes res as indented JSON and turns a failed result into
// a command error.
func printResult(w io.Writer, res control.Result) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if !res.Success {
		return fmt.Errorf("%s", res.Message)
	}
	return nil
}
