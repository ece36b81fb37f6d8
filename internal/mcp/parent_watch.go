package mcp

import (
	"context"
	"os"
	"time"

	"mycbr/internal/logging"
)

var (
	pollInterval = 2 * time.Second
	getppid      = os.Getppid
)

// WatchParent cancels the server when its parent process goes away, so that
// an editor restarting its extension host does not leave stray servers behind.
//
// It must not read stdin: the stdio transport owns it.
func WatchParent(ctx context.Context, cancel context.CancelFunc) {
	parent, interval := getppid, pollInterval
	ppid := parent()
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if parent() != ppid {
					logging.New("mcp").Warn("parent process exited, shutting down", "ppid", ppid)
					cancel()
					return
				}
			}
		}
	}()
}
