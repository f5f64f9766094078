package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/mvvm"
	"github.com/aretw0/mvvm/internal/demo"
	"github.com/aretw0/mvvm/internal/presentation/tui"
	"github.com/spf13/cobra"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run a simulated transfer in the terminal",
	Long:  `Runs the transfer view-model on the main loop and prints its progress. Ctrl+C cancels the transfer.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := setup(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("steps") {
			cfg.Demo.Steps, _ = cmd.Flags().GetInt("steps")
		}
		opts, err := runtimeOptions(cfg, logger)
		if err != nil {
			return err
		}

		rt := mvvm.New(opts...)
		tr := demo.NewTransfer(rt, demo.WithSteps(cfg.Demo.Steps), demo.WithInterval(cfg.Demo.Interval))
		defer tr.Dispose()

		out := cmd.OutOrStdout()
		tui.PrintBanner(out, mvvm.Version)
		detach := tui.NewPrinter(out).Attach(tr)
		defer detach()

		interrupted, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		mainCtx, stopMain := context.WithCancel(context.Background())
		go func() {
			defer stopMain()
			if err := tr.StartCommand().Execute(nil); err != nil {
				logger.Error("Failed to start transfer", "err", err)
				return
			}

			finished := make(chan struct{})
			go func() {
				tr.Wait()
				close(finished)
			}()
			select {
			case <-finished:
			case <-interrupted.Done():
				logger.Info("Interrupt received, cancelling transfer")
				_ = tr.CancelCommand().Execute(nil)
				<-finished
			}
		}()

		// The command goroutine is the main loop until the transfer ends.
		if err := rt.Run(mainCtx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		fmt.Fprintf(out, "%s after %d of %d steps\n", tr.Status(), tr.Progress(), tr.Total())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.Flags().Int("steps", 10, "Number of steps to simulate")
}
