package filterable

import (
	"net/http"
	"strings"

	"github.com/fy0/filterable/filter"
)

const (
	DefaultFilterHeader = "x-filter"
	DefaultFilterParam  = "filter"
)

// Transport names where a filter is read from on incoming requests.
type Transport struct {
	Header string
	Param  string
}

// DefaultTransport reads the x-filter header, then the filter query parameter.
var DefaultTransport = Transport{Header: DefaultFilterHeader, Param: DefaultFilterParam}

// Raw returns the filter JSON of r. The header wins over the query parameter.
func (t Transport) Raw(r *http.Request) string {
	if t.Header != "" {
		if v := strings.TrimSpace(r.Header.Get(t.Header)); v != "" {
			return v
		}
	}
	if t.Param != "" {
		if v := strings.TrimSpace(r.URL.Query().Get(t.Param)); v != "" {
			return v
		}
	}
	return ""
}

// Read parses the filter of r. It returns a nil node when r carries none.
// Malformed filters are reported as *filter.ParseError.
func (t Transport) Read(r *http.Request) (filter.Node, error) {
	raw := t.Raw(r)
	if raw == "" {
		return nil, nil
	}
	return filter.ParseJSON([]byte(raw), true)
}

// ReadFilter reads the filter of r with DefaultTransport.
func ReadFilter(r *http.Request) (filter.Node, error) {
	return DefaultTransport.Read(r)
}
