package domain

import (
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Entry is a captured origin response stored under a cache generation.
// Only successful (2xx) responses are ever captured; a failed response is
// never written over a good entry.
type Entry struct {
	Status     int         `json:"status"`
	Header     http.Header `json:"header"`
	Body       []byte      `json:"body"`
	StoredAt   time.Time   `json:"stored_at"`
	Generation string      `json:"generation"`
}

// OK reports whether the captured status is in the 2xx range, which is the
// precondition for the entry being cacheable.
func (e Entry) OK() bool {
	return e.Status/100 == 2
}

// CloneHeader returns a deep copy of the entry's header so callers can
// mutate the result without touching the stored entry.
func (e Entry) CloneHeader() http.Header {
	out := make(http.Header, len(e.Header))
	for k, vs := range e.Header {
		vv := make([]string, len(vs))
		copy(vv, vs)
		out[k] = vv
	}
	return out
}

// EntryKey canonicalizes a request identity into a cache key. Only GET
// requests are cacheable, so the method component exists purely to keep the
// key self-describing. Fragments are dropped; the query string is kept
// because it changes the response.
func EntryKey(method, rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return strings.ToUpper(method) + " " + rawURL
	}
	u.Fragment = ""
	if u.Path == "" {
		u.Path = "/"
	}
	return strings.ToUpper(method) + " " + u.String()
}
