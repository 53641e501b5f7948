package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog/hlog"

	"ndta-news/pipeline/internal/models"
	"ndta-news/pipeline/internal/server/pagination"
	"ndta-news/pipeline/internal/server/storage"
)

const defaultLimit = 100
const maxLimit = 1000
const iso8601Format = time.RFC3339

// Response structure for the articles endpoint
type Response struct {
	Items      []*models.Article `json:"items"`
	NextCursor *string           `json:"next_cursor,omitempty"`
}

// ArticlesHandler serves the paginated article feed.
type ArticlesHandler struct {
	repo storage.ArticleRepository
}

// NewArticlesHandler creates a new handler instance.
func NewArticlesHandler(repo storage.ArticleRepository) *ArticlesHandler {
	return &ArticlesHandler{repo: repo}
}

// GetArticles returns articles stored after 'since', or after 'cursor' for
// the following pages. Without either parameter the feed starts at the
// beginning.
func (h *ArticlesHandler) GetArticles(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)
	log.Debug().Msg("Processing articles request")

	query := r.URL.Query()
	limitStr := query.Get("limit")
	sinceStr := query.Get("since")
	cursorStr := query.Get("cursor")

	limit := defaultLimit
	if limitStr != "" {
		parsedLimit, err := strconv.Atoi(limitStr)
		if err != nil || parsedLimit <= 0 || parsedLimit > maxLimit {
			log.Warn().Err(err).Str("limit", limitStr).Msg("Invalid 'limit' parameter value")
			http.Error(w, fmt.Sprintf("Invalid 'limit' parameter: must be between 1 and %d", maxLimit), http.StatusBadRequest)
			return
		}
		limit = parsedLimit
	}

	var since *time.Time
	var cursorTimestamp *time.Time
	var cursorID *string

	switch {
	case cursorStr != "":
		ts, id, err := pagination.DecodeCursor(cursorStr)
		if err != nil {
			log.Warn().Err(err).Str("cursor", cursorStr).Msg("Invalid 'cursor' parameter")
			http.Error(w, "Invalid 'cursor' parameter", http.StatusBadRequest)
			return
		}
		cursorTimestamp = &ts
		cursorID = &id
	case sinceStr != "":
		parsedSince, err := time.Parse(iso8601Format, sinceStr)
		if err != nil {
			log.Warn().Err(err).Str("since", sinceStr).Msg("Invalid 'since' parameter format")
			http.Error(w, "Invalid 'since' parameter: use RFC3339 format (e.g., 2025-03-28T15:00:00Z)", http.StatusBadRequest)
			return
		}
		utcSince := parsedSince.UTC()
		since = &utcSince
	default:
		var epoch time.Time
		since = &epoch
	}

	page, err := h.repo.FetchArticles(r.Context(), limit+1, since, cursorTimestamp, cursorID) // Fetch one extra
	if err != nil {
		log.Error().Err(err).Str("cursor", cursorStr).Msg("Error fetching articles from repository")
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}

	var nextCursorStr *string
	items := page.Articles
	if len(items) > limit {
		items = items[:limit]
		cursor := pagination.EncodeCursor(page.Created[limit-1], items[limit-1].ID)
		nextCursorStr = &cursor
	}
	if items == nil {
		items = []*models.Article{}
	}

	writeJSON(w, r, http.StatusOK, Response{Items: items, NextCursor: nextCursorStr})
}

// writeJSON marshals v before writing any header so a failure can still be
// reported as a 500.
func writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	log := hlog.FromRequest(r)

	jsonBytes, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("Error marshaling JSON response")
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(jsonBytes); err != nil {
		log.Error().Err(err).Msg("Error writing JSON response body to client")
		return
	}
	log.Debug().Int("bytes_written", len(jsonBytes)).Msg("Response completed")
}

type errorBody struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, r, status, errorBody{Error: msg})
}
