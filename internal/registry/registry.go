// Package registry implements the Registry (spec C6): a catalogue of
// endpoints grouped by category, dispatched through method+path-template
// matching, with authentication, role-based authorization, and uniform error
// enveloping centralized here and nowhere else (spec.md §4.3: "the only
// place cross-cutting concerns live"). Generalized from
// applications/httpapi/router.go + middleware.go's bare http.ServeMux
// dispatch into a go-chi/chi/v5 router so "{name}" path-parameter templates
// (spec.md's Endpoint.pathTemplate) are a first-class feature instead of a
// hand-rolled segment matcher.
package registry

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/regulens/compliance-core/pkg/auth"
	"github.com/regulens/compliance-core/pkg/logging"
	"github.com/regulens/compliance-core/pkg/metrics"
)

// Request is the normalized inbound request a Handler sees.
type Request struct {
	Ctx      context.Context
	Method   string
	Path     string
	Query    map[string][]string
	Params   map[string]string
	Headers  http.Header
	Body     []byte
	CallerID string
	Claims   *auth.Identity
}

// QueryParam returns the first value of a query parameter, or "".
func (r Request) QueryParam(name string) string {
	v, ok := r.Query[name]
	if !ok || len(v) == 0 {
		return ""
	}
	return v[0]
}

// Response is what a Handler returns; the Registry serializes it.
type Response struct {
	Status      int
	Body        interface{}
	ContentType string
	Headers     map[string]string
}

// JSON builds a JSON Response with the given status.
func JSON(status int, body interface{}) Response {
	return Response{Status: status, Body: body, ContentType: "application/json; charset=utf-8"}
}

// Handler processes a normalized Request into a Response. Handlers return
// values, never panic for expected failures; an unrecovered panic is still
// trapped by the Registry and surfaced as a 500 envelope (spec.md §4.3 step 4).
type Handler func(r Request) Response

// Endpoint is one registrable route.
type Endpoint struct {
	Method        string
	PathTemplate  string
	Category      string
	Summary       string
	AuthRequired  bool
	AllowedRoles  []string
	Handler       Handler
}

// Registry is the read-after-start endpoint catalogue.
type Registry struct {
	mux      *chi.Mux
	tokens   *auth.Service
	log      *logging.Logger
	seen     map[string]bool // method+pathTemplate -> registered
	byCategory map[string][]Endpoint
	started  bool
}

// New builds an empty Registry. started flips to true once Handler is
// called, after which Register is no longer permitted (spec.md §5:
// "the registry is read-only after startup").
func New(tokens *auth.Service, log *logging.Logger) *Registry {
	return &Registry{
		mux:        chi.NewRouter(),
		tokens:     tokens,
		log:        log,
		seen:       make(map[string]bool),
		byCategory: make(map[string][]Endpoint),
	}
}

// Register adds an endpoint to its category bucket. It fails registration
// (rather than silently shadowing) on an exact method+pathTemplate collision,
// resolving spec.md §9's open question about ambiguous route priority.
func (reg *Registry) Register(ep Endpoint) error {
	if reg.started {
		return fmt.Errorf("registry already started: cannot register %s %s", ep.Method, ep.PathTemplate)
	}
	key := ep.Method + " " + ep.PathTemplate
	if reg.seen[key] {
		return fmt.Errorf("duplicate registration for %s", key)
	}
	reg.seen[key] = true
	reg.byCategory[ep.Category] = append(reg.byCategory[ep.Category], ep)

	reg.mux.Method(ep.Method, chiPattern(ep.PathTemplate), reg.wrap(ep))
	return nil
}

// RegisterAll is a convenience for registering many endpoints, stopping (and
// returning the first error) on any collision.
func (reg *Registry) RegisterAll(endpoints ...Endpoint) error {
	for _, ep := range endpoints {
		if err := reg.Register(ep); err != nil {
			return err
		}
	}
	return nil
}

// Categories returns every registered endpoint grouped by category, used by
// introspection endpoints and the CLI console's api-status command.
func (reg *Registry) Categories() map[string][]Endpoint {
	return reg.byCategory
}

// Handler returns the http.Handler to pass to an HTTP server, and flips the
// registry into its read-only serving state.
func (reg *Registry) Handler() http.Handler {
	reg.started = true
	return reg.mux
}

// chiPattern rewrites spec.md's "{name}" path template into chi's identical
// "{name}" syntax — already compatible, kept as a named conversion point in
// case the wire format ever needs decoupling from chi's own syntax.
func chiPattern(tmpl string) string { return tmpl }

func (reg *Registry) wrap(ep Endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		route := ep.PathTemplate
		status := http.StatusOK

		defer func() {
			if rec := recover(); rec != nil {
				reg.log.Component("registry").WithField("route", route).Errorf("handler panic: %v", rec)
				writeError(w, http.StatusInternalServerError, "internal error", "")
				status = http.StatusInternalServerError
			}
			metrics.ObserveHTTP(ep.Method, route, fmt.Sprint(status), time.Since(start))
		}()

		req, err := reg.buildRequest(r)
		if err != nil {
			status = http.StatusBadRequest
			writeError(w, status, err.Error(), "malformed")
			return
		}

		if ep.AuthRequired {
			identity, err := reg.tokens.Identify(r.Header)
			if err != nil {
				status = http.StatusUnauthorized
				writeError(w, status, "authentication required", "unauthenticated")
				return
			}
			req.CallerID = identity.UserID
			req.Claims = identity

			if len(ep.AllowedRoles) > 0 && !hasAnyRole(identity.Roles, ep.AllowedRoles) {
				status = http.StatusForbidden
				writeError(w, status, "insufficient role", "forbidden")
				return
			}
		}

		resp := ep.Handler(req)
		status = resp.Status
		writeResponse(w, resp)
	}
}

func (reg *Registry) buildRequest(r *http.Request) (Request, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return Request{}, fmt.Errorf("read body: %w", err)
	}

	params := map[string]string{}
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		for i, key := range rctx.URLParams.Keys {
			if i < len(rctx.URLParams.Values) {
				params[key] = rctx.URLParams.Values[i]
			}
		}
	}

	return Request{
		Ctx:     r.Context(),
		Method:  r.Method,
		Path:    r.URL.Path,
		Query:   r.URL.Query(),
		Params:  params,
		Headers: r.Header,
		Body:    body,
	}, nil
}

func hasAnyRole(have, want []string) bool {
	wantSet := make(map[string]bool, len(want))
	for _, w := range want {
		wantSet[w] = true
	}
	for _, h := range have {
		if wantSet[h] {
			return true
		}
	}
	return false
}

func writeResponse(w http.ResponseWriter, resp Response) {
	contentType := resp.ContentType
	if contentType == "" {
		contentType = "application/json; charset=utf-8"
	}
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	w.Header().Set("Content-Type", contentType)
	status := resp.Status
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	if resp.Body == nil || status == http.StatusNoContent {
		return
	}
	_ = json.NewEncoder(w).Encode(resp.Body)
}

func writeError(w http.ResponseWriter, status int, message, code string) {
	body := map[string]string{"error": message}
	if code != "" {
		body["code"] = code
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
