package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/CWILDMOUNTAIN/ha-wattwise/app"
	"github.com/CWILDMOUNTAIN/ha-wattwise/config"
)

var optimizeCmd = &cobra.Command{
	Use:   "optimize",
	Short: "Run a single optimization and exit",
	RunE:  optimizeOnce,
}

func init() {
	rootCmd.AddCommand(optimizeCmd)
}

func optimizeOnce(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.RunOnce(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("run %s: %s, %d steps, solve %s\n",
		res.RunID, res.Status, res.Horizon, res.SolveDuration)
	if res.Err != nil {
		return res.Err
	}
	return nil
}
