package audit

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// Handler returns the operator inspection endpoint over the audit log.
// Query params: email, status, since, until (RFC 3339), limit.
func Handler(reader Reader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := Filter{
			Email:  r.URL.Query().Get("email"),
			Status: Status(r.URL.Query().Get("status")),
			Limit:  100,
		}

		if since := r.URL.Query().Get("since"); since != "" {
			t, err := time.Parse(time.RFC3339, since)
			if err != nil {
				http.Error(w, "invalid since parameter", http.StatusBadRequest)
				return
			}
			filter.Since = t
		}
		if until := r.URL.Query().Get("until"); until != "" {
			t, err := time.Parse(time.RFC3339, until)
			if err != nil {
				http.Error(w, "invalid until parameter", http.StatusBadRequest)
				return
			}
			filter.Until = t
		}
		if limit := r.URL.Query().Get("limit"); limit != "" {
			n, err := strconv.Atoi(limit)
			if err != nil || n <= 0 || n > 1000 {
				http.Error(w, "invalid limit parameter", http.StatusBadRequest)
				return
			}
			filter.Limit = n
		}

		records, err := reader.List(r.Context(), filter)
		if err != nil {
			http.Error(w, "failed to read audit log", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_ = json.NewEncoder(w).Encode(records)
	}
}
