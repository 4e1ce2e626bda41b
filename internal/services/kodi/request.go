package kodi

import (
	"encoding/json"
	"maps"
)

// Filter is a single predicate such as {"artistid": 4}, or a combination
// {"and": [...]} built by the encoder.
type Filter = map[string]any

// Sort orders a list result, e.g. {"order": "ascending", "method": "track"}.
type Sort struct {
	Order  string `json:"order"`
	Method string `json:"method"`
}

// Request is one JSON-RPC 2.0 call envelope.
type Request struct {
	JSONRPC string         `json:"jsonrpc"`
	Method  string         `json:"method"`
	ID      string         `json:"id"`
	Params  map[string]any `json:"params"`
}

type requestSpec struct {
	params     map[string]any
	sort       *Sort
	filters    []Filter
	filterOp   string
	properties []string
	limits     *[2]int
	id         string
}

// RequestOption supplies one optional part of a request.
type RequestOption func(*requestSpec)

// WithParams copies raw parameters into the request. Keys set by the other
// options take precedence.
func WithParams(params map[string]any) RequestOption {
	return func(s *requestSpec) {
		if s.params == nil {
			s.params = make(map[string]any, len(params))
		}
		maps.Copy(s.params, params)
	}
}

func WithSort(order, method string) RequestOption {
	return func(s *requestSpec) { s.sort = &Sort{Order: order, Method: method} }
}

// WithFilters attaches predicates combined with "and" when more than one is given.
func WithFilters(filters ...Filter) RequestOption {
	return WithFilterOp("and", filters...)
}

// WithFilterOp attaches predicates combined with op ("and" or "or") when more
// than one is given. An empty op means "and".
func WithFilterOp(op string, filters ...Filter) RequestOption {
	if op == "" {
		op = "and"
	}
	return func(s *requestSpec) {
		s.filterOp = op
		s.filters = append(s.filters, filters...)
	}
}

func WithProperties(fields ...string) RequestOption {
	return func(s *requestSpec) { s.properties = append(s.properties, fields...) }
}

// WithLimits restricts the result range to [start, end).
func WithLimits(start, end int) RequestOption {
	return func(s *requestSpec) { s.limits = &[2]int{start, end} }
}

// WithID pins the call id. Without it the client assigns a fresh one per send.
func WithID(id string) RequestOption {
	return func(s *requestSpec) { s.id = id }
}

// NewRequest builds a request for method. Only supplied parts appear in the
// params object; nothing is validated.
func NewRequest(method string, opts ...RequestOption) Request {
	spec := requestSpec{filterOp: "and"}
	for _, opt := range opts {
		opt(&spec)
	}

	params := make(map[string]any, len(spec.params)+4)
	maps.Copy(params, spec.params)
	if spec.sort != nil {
		params["sort"] = *spec.sort
	}
	switch len(spec.filters) {
	case 0:
	case 1:
		params["filter"] = spec.filters[0]
	default:
		combined := make([]Filter, len(spec.filters))
		copy(combined, spec.filters)
		params["filter"] = Filter{spec.filterOp: combined}
	}
	if spec.properties != nil {
		params["properties"] = append([]string(nil), spec.properties...)
	}
	if spec.limits != nil {
		params["limits"] = map[string]int{"start": spec.limits[0], "end": spec.limits[1]}
	}

	return Request{JSONRPC: "2.0", Method: method, ID: spec.id, Params: params}
}

// Encode serializes the request envelope.
func (r Request) Encode() ([]byte, error) {
	if r.JSONRPC == "" {
		r.JSONRPC = "2.0"
	}
	if r.Params == nil {
		r.Params = map[string]any{}
	}
	return json.Marshal(r)
}
