// Command weather looks up forecasts from the terminal using the same
// orchestrator as the web service.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	deps := &runtimeDeps{}
	if err := execute(ctx, newRootCommand(deps), deps); err != nil {
		if !errors.Is(err, errLookupFailed) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		stop()
		os.Exit(1)
	}
}
