// tcptrace - a transparent TCP relay that traces every byte it forwards.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"tcptrace/cmd"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := cmd.Execute(ctx, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "tcptrace: %v\n", err)
		os.Exit(1)
	}
}
