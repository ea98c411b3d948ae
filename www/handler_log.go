package www

import (
	"log/slog"
	"net/http"

	"github.com/angas/pricewatch-go/database"
)

func NewLogHandler(logger *slog.Logger, db *database.Database) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		page := intOrDefault(r.URL, "page", 1)
		pageSize := intOrDefault(r.URL, "pageSize", 25)

		entries, err := db.GetLogEntries(r.Context(), slog.LevelDebug, page, pageSize)
		if err != nil {
			logger.Error("handling log request", slog.Any("error", err))
			writeError(logger, w, http.StatusInternalServerError, err.Error())
			return
		}
		if entries == nil {
			entries = []database.LogEntryRow{}
		}

		writeJSON(logger, w, http.StatusOK, entries)
	}
}
