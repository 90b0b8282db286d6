// Package main is spreadctl, the operator CLI for spreadbook. It works
// directly against the strategy database configured by the environment.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aristath/spreadbook/internal/config"
)

func main() {
	if err := run(context.Background(), os.Args[1:], config.Load, os.Stdin, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
