package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"
)

// Version is set during build using ldflags.
var Version = "dev"

func main() {
	app := &cli.Command{
		Name:    "sagactl",
		Version: Version,
		Usage:   "inspect and demo sagakit transaction runs",
		Commands: []*cli.Command{
			{
				Name:  "version",
				Usage: "print the version information",
				Action: func(ctx context.Context, cmd *cli.Command) error {
					fmt.Printf("sagactl version %s\n", cmd.Root().Version)
					return nil
				},
			},
			{
				Name:  "demo",
				Usage: "run a sample fund-transfer transaction and render its event history",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "fail",
						Usage: "force the record step to fail, exercising rollback",
					},
					&cli.StringFlag{
						Name:  "log-level",
						Usage: "trace|debug|info|warn|error",
						Value: "info",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runDemo(ctx, cmd.Bool("fail"), cmd.String("log-level"))
				},
			},
			{
				Name:  "serve",
				Usage: "run a worker.Runner under a supervisor and submit one queued transfer",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "log-level",
						Usage: "trace|debug|info|warn|error",
						Value: "info",
					},
				},
				Action: func(ctx context.Context, cmd *cli.Command) error {
					return runServe(ctx, cmd.String("log-level"))
				},
			},
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
