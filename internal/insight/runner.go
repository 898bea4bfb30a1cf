package insight

import (
	"context"
	"log"
)

// Detach runs fn on its own goroutine with a fresh background context, so
// cancelling the originating request never cancels the pipeline. Panics and
// errors are logged and swallowed; nothing surfaces to the caller.
func Detach(logger *log.Logger, name string, fn func(ctx context.Context) error) {
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				logger.Printf("panic in %s task: %v", name, rec)
			}
		}()
		if err := fn(context.Background()); err != nil {
			logger.Printf("%s task failed: %v", name, err)
		}
	}()
}
