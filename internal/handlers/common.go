package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/regulens/compliance-core/internal/registry"
)

// validate is a single shared validator.Validate instance: per its own
// documentation, struct-tag caches make one instance reused across
// goroutines cheaper than building a new one per request.
var validate = validator.New()

// decodeAndValidate decodes the request body into v and runs struct-tag
// validation (`validate:"..."`) over it in one step, replacing the
// ad hoc "field == ''" checks this package used before per-field validation
// had a shared helper.
func decodeAndValidate(r registry.Request, v interface{}) error {
	if err := decodeBody(r, v); err != nil {
		return err
	}
	return validate.Struct(v)
}

// Pagination is the {limit, offset, total} companion spec.md §4.7 requires
// alongside every list response.
type Pagination struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
	Total  int `json:"total"`
}

// listResult is the uniform {items, pagination} envelope for list endpoints.
type listResult struct {
	Items      interface{} `json:"items"`
	Pagination Pagination  `json:"pagination"`
}

func paged(items interface{}, limit, offset, total int) listResult {
	return listResult{Items: items, Pagination: Pagination{Limit: limit, Offset: offset, Total: total}}
}

// parsePagination reads limit/offset query parameters, clamped per spec.md
// §4.7 ("limit <= 1000, default 50; offset >= 0").
func parsePagination(r registry.Request) (limit, offset int) {
	limit = 50
	offset = 0
	if v := r.QueryParam("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	if v := r.QueryParam("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			offset = n
		}
	}
	if limit <= 0 || limit > 1000 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

// parseSort reads sortBy/sortOrder, whitelisting sortBy against allowed and
// falling back to (defaultSort, "desc") otherwise (spec.md §4.7 Sorting).
func parseSort(r registry.Request, allowed []string, defaultSort string) (sortBy, order string) {
	sortBy = defaultSort
	if v := r.QueryParam("sortBy"); v != "" {
		for _, a := range allowed {
			if a == v {
				sortBy = v
				break
			}
		}
	}
	order = "desc"
	if v := r.QueryParam("sortOrder"); v == "asc" || v == "desc" {
		order = v
	}
	return sortBy, order
}

func errResponse(status int, message string) registry.Response {
	return registry.Response{Status: status, Body: map[string]string{"error": message}, ContentType: "application/json; charset=utf-8"}
}

func errResponseCode(status int, message, code string) registry.Response {
	return registry.Response{Status: status, Body: map[string]string{"error": message, "code": code}, ContentType: "application/json; charset=utf-8"}
}

func decodeBody(r registry.Request, v interface{}) error {
	if len(r.Body) == 0 {
		return nil
	}
	return json.Unmarshal(r.Body, v)
}

func newID(prefix string) string {
	return prefix + "_" + uuid.NewString()
}

// statusFromDBErr maps a database failure into the 500/504 classes spec.md
// §4.9 names ("DB query -> dbFailure{msg} to caller").
func statusFromDBErr(err error) int {
	if err == nil {
		return http.StatusOK
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	return http.StatusInternalServerError
}
