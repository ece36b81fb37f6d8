// mycbr is a command-line client for a myCBR similarity server: schema
// listing, casebase management, retrieval and similarity analytics.
//
// Usage:
//
//	mycbr concepts
//	mycbr --casebase cars --function default retrieve by-case car_42 -k 10
//	mycbr casebase self-similarity --ordered --heatmap
//	mycbr compare two car_1 car_2 --output markdown
//	mycbr mcp --metrics-addr :9464
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

// version is set at build time via -ldflags.
var version = "dev"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
