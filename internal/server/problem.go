package server

import (
	"encoding/json"
	"net/http"
	"strings"
)

const problemTypeBase = "https://github.com/HerbHall/feedwatch/problems/"

// Problem is an RFC 7807 problem details body. RequestID ties the
// response to the access log line.
type Problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

// problemType derives the type URI from the status text, e.g.
// 404 -> ".../problems/not-found".
func problemType(status int) string {
	text := http.StatusText(status)
	if text == "" {
		return "about:blank"
	}
	return problemTypeBase + strings.ToLower(strings.ReplaceAll(text, " ", "-"))
}

// writeProblem writes a problem response for r with the given status.
func writeProblem(w http.ResponseWriter, r *http.Request, status int, detail string) {
	p := Problem{
		Type:      problemType(status),
		Title:     http.StatusText(status),
		Status:    status,
		Detail:    detail,
		Instance:  r.URL.Path,
		RequestID: RequestID(r.Context()),
	}
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(p)
}
