package www

import (
	"log/slog"
	"net/http"

	"github.com/angas/pricewatch-go/coordinator"
)

func NewHouseholdsHandler(logger *slog.Logger, manager *coordinator.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(logger, w, http.StatusOK, manager.Households())
	}
}
