package internal

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"equipment-inventory-console/internal/render"
)

// listParams holds common query parameters for list endpoints
type listParams struct {
	limit   int
	offset  int
	q       string
	sort    string
	filters url.Values
}

// parseListParams parses limit, offset, q, sort and the named filters.
// Defaults: limit=50 (max 200), offset=0. Sort keys outside allowedSort are dropped.
func parseListParams(r *http.Request, allowedSort map[string]string, filters ...string) listParams {
	values := r.URL.Query()

	limit := 50
	if s := strings.TrimSpace(values.Get("limit")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			if v > 200 {
				v = 200
			}
			limit = v
		}
	}

	offset := 0
	if s := strings.TrimSpace(values.Get("offset")); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}

	f := url.Values{}
	for _, name := range filters {
		if s := strings.TrimSpace(values.Get(name)); s != "" {
			f.Set(name, s)
		}
	}

	return listParams{
		limit:   limit,
		offset:  offset,
		q:       strings.TrimSpace(values.Get("q")),
		sort:    normalizeSort(values.Get("sort"), allowedSort),
		filters: f,
	}
}

// query renders the params for the backend. Encoding is sorted, so equal
// params always produce the same cache key.
func (p listParams) query() url.Values {
	q := url.Values{}
	for k, vs := range p.filters {
		q[k] = append([]string(nil), vs...)
	}
	q.Set("limit", strconv.Itoa(p.limit))
	q.Set("offset", strconv.Itoa(p.offset))
	if p.q != "" {
		q.Set("q", p.q)
	}
	if p.sort != "" {
		q.Set("sort", p.sort)
	}
	return q
}

// normalizeSort keeps only whitelisted sort keys.
// allowed maps incoming sort keys (e.g., "date") to backend field names.
// Input sort is comma-separated; prefix with '-' for DESC.
// Returns "" when nothing survives, leaving the backend's default order.
func normalizeSort(sortParam string, allowed map[string]string) string {
	if sortParam == "" {
		return ""
	}

	parts := strings.Split(sortParam, ",")
	clauses := make([]string, 0, len(parts))
	for _, raw := range parts {
		s := strings.TrimSpace(raw)
		if s == "" {
			continue
		}
		desc := false
		if strings.HasPrefix(s, "-") {
			desc = true
			s = strings.TrimPrefix(s, "-")
		}
		field, ok := allowed[s]
		if !ok {
			continue
		}
		if desc {
			clauses = append(clauses, "-"+field)
		} else {
			clauses = append(clauses, field)
		}
	}
	return strings.Join(clauses, ",")
}

// listMeta describes one page of a list response
type listMeta struct {
	Count     int    `json:"count"`
	Limit     int    `json:"limit"`
	Offset    int    `json:"offset"`
	Timestamp string `json:"timestamp"`
}

// sendListResponse writes {data, meta}
func sendListResponse(w http.ResponseWriter, items interface{}, count int, params listParams) {
	render.JSON(w, http.StatusOK, map[string]any{
		"data": items,
		"meta": listMeta{
			Count:     count,
			Limit:     params.limit,
			Offset:    params.offset,
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		},
	})
}
