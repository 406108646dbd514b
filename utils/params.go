package utils

import (
	"net/http"
	"strings"
)

// QueryOptions are the optional list filters.
type QueryOptions struct {
	Search string
}

func ParseQueryOptions(r *http.Request) QueryOptions {
	q := r.URL.Query()
	return QueryOptions{
		Search: strings.TrimSpace(q.Get("search")),
	}
}

func ContainsIgnoreCase(str, substr string) bool {
	return strings.Contains(strings.ToLower(str), strings.ToLower(substr))
}
