package www

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/angas/pricewatch-go/coordinator"
)

// NewRefreshHandler triggers a refresh cycle outside the hourly schedule. The
// cycle runs in the background, an already running cycle makes this a no-op.
func NewRefreshHandler(logger *slog.Logger, manager *coordinator.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, ok := manager.Coordinator(r.PathValue("id"))
		if !ok {
			writeError(logger, w, http.StatusNotFound, "unknown household")
			return
		}

		// Detached from the request context, the cycle may outlive the request.
		go func() {
			if err := c.Refresh(context.Background()); err != nil {
				logger.Warn("requested refresh failed", slog.Any("error", err))
			}
		}()

		writeJSON(logger, w, http.StatusAccepted, map[string]string{"status": "refresh started"})
	}
}
