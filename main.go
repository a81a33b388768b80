// Package main is the entry point for the alertdesk service.
package main

import (
	"context"
	"fmt"
	"os"

	"alertdesk/bootstrap"
	"alertdesk/cmd"
)

// run initializes and starts the alertdesk service.
func run() error {
	ctx := context.Background()

	app, err := bootstrap.NewApp(ctx)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}

	if err := app.Start(ctx); err != nil {
		app.Shutdown()
		return fmt.Errorf("failed to start application: %w", err)
	}

	app.WaitForShutdown()
	app.Shutdown()
	return nil
}

// main is the entry point.
func main() {
	// Check if running as CLI command
	if len(os.Args) > 1 && os.Args[1] == "alerts" {
		// Strip "alerts" from os.Args since the command already knows it's
		// the alerts command
		os.Args = append([]string{os.Args[0]}, os.Args[2:]...)

		alertsCmd := cmd.NewAlertsCmd()
		if err := alertsCmd.Execute(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
}
