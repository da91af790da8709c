package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		// Interrupted runs already printed what they had to say.
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "vintner:", err)
		}
		os.Exit(1)
	}
}
