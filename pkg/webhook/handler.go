package webhook

import (
	"encoding/json"
	"io"
	"net"
	"net/http"
	"strings"
)

// maxBodyBytes bounds the payload size; provider notifications are a
// few hundred bytes.
const maxBodyBytes = 1 << 20

// Handler returns the HTTP handler for the provider's POST endpoint.
// Status mapping: 400 missing fields, 403 token mismatch, 500
// unexpected internal failure, 200 for every successfully-logged
// outcome including business non-matches like unknown users.
func (p *Processor) Handler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
		if err != nil {
			writeJSON(w, http.StatusBadRequest, Response{Success: false, Message: "payload invalido"})
			return
		}

		response, status := p.Process(r.Context(), raw, Meta{
			SourceIP:  clientIP(r),
			UserAgent: r.UserAgent(),
		})
		writeJSON(w, status, response)
	}
}

func writeJSON(w http.ResponseWriter, status int, body Response) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// clientIP prefers the first X-Forwarded-For hop set by the ingress
// proxy, falling back to the socket address.
func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
