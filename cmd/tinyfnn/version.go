package main

import (
	"context"
	"fmt"
	"runtime"

	"github.com/urfave/cli/v3"

	"github.com/born-ml/tinyfnn/fnn"
	"github.com/born-ml/tinyfnn/internal/serialization"
)

func versionCmd() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "Print version information",
		Action: func(ctx context.Context, cmd *cli.Command) error {
			fmt.Printf("version:     %s\n", fnn.Version)
			fmt.Printf("file format: %d\n", serialization.FormatVersion)
			fmt.Printf("go:          %s\n", runtime.Version())
			return nil
		},
	}
}
