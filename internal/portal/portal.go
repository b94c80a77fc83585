// Package portal serves a small local member portal on top of the session
// core: a public entry point, sign-in and sign-out, and a guarded member area.
package portal

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/alexlup06-authgate/memberauth-go/enquiry"
	"github.com/alexlup06-authgate/memberauth-go/internal/observability"
	"github.com/alexlup06-authgate/memberauth-go/memberauth"
)

// Option configures a Server.
type Option func(*Server)

// WithMetrics records portal and session metrics and exposes gatherer on
// /metrics.
func WithMetrics(m *observability.Metrics, gatherer prometheus.Gatherer) Option {
	return func(s *Server) {
		s.metrics = m
		s.gatherer = gatherer
	}
}

// Server is the portal HTTP surface.
type Server struct {
	sdk       *memberauth.SDK
	enquiries *enquiry.Client
	metrics   *observability.Metrics
	gatherer  prometheus.Gatherer
}

// New builds a portal for the member signed in through sdk.
func New(sdk *memberauth.SDK, opts ...Option) *Server {
	s := &Server{
		sdk:       sdk,
		enquiries: enquiry.NewClient(sdk.Gateway, sdk.Client.BaseURL()),
		gatherer:  prometheus.DefaultGatherer,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Router returns the portal routes.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(propagateRequestID)
	r.Use(middleware.Recoverer)
	if s.metrics != nil {
		r.Use(s.observe)
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	r.Get("/", s.handleEntry)
	r.Post("/login", s.handleLogin)
	r.Post("/register", s.handleRegister)
	r.Post("/logout", s.handleLogout)

	r.Route("/member", func(r chi.Router) {
		r.Use(s.sdk.Guard.Protect)
		r.Use(s.tagMember)
		r.Get("/", s.handleMember)
		r.Post("/enquiries/{kind}", s.handleEnquiry)
	})

	return r
}

// propagateRequestID hands chi's request id to the gateway so upstream calls
// carry the same X-Request-ID.
func propagateRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := middleware.GetReqID(r.Context()); id != "" {
			r = r.WithContext(memberauth.WithRequestID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// tagMember puts the signed-in member's id on the request context so log
// lines from the member area carry user_id.
func (s *Server) tagMember(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := memberauth.PeekClaims(s.sdk.Store.Get()); err == nil && c.Subject != "" {
			r = r.WithContext(observability.WithUserID(r.Context(), c.Subject))
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			route = rc.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.metrics.ObserveHTTP(r.Method, route, status, time.Since(start).Seconds())
	})
}

func (s *Server) handleEntry(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"authenticated": s.sdk.Session.IsAuthenticated(),
		"return_to":     safeReturnTo(r.URL.Query().Get(memberauth.ReturnToParam), ""),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	ReturnTo string `json:"return_to"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var in loginRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.sdk.Session.Login(r.Context(), in.Email, in.Password); err != nil {
		status := http.StatusUnauthorized
		if errors.Is(err, memberauth.ErrNetwork) {
			status = http.StatusBadGateway
		}
		writeDetail(w, status, memberauth.DisplayMessage(err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"redirect": safeReturnTo(in.ReturnTo, "/member"),
	})
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var in registerRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := s.sdk.Session.RegisterAndLogin(r.Context(), memberauth.Profile{
		Identifier: in.Email,
		Secret:     in.Password,
		FirstName:  in.FirstName,
		LastName:   in.LastName,
	})

	var ae *memberauth.AuthError
	switch {
	case err == nil:
		writeJSON(w, http.StatusCreated, map[string]string{"redirect": "/member"})
	case errors.Is(err, memberauth.ErrAutoLoginFailed):
		// The account exists; send the visitor to sign in by hand.
		writeJSON(w, http.StatusCreated, map[string]string{
			"redirect": memberauth.DefaultEntryPoint,
			"detail":   memberauth.DisplayMessage(err),
		})
	case errors.As(err, &ae) && errors.Is(err, memberauth.ErrRegistrationFailed):
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"detail": ae.Message,
			"fields": ae.Fields(),
		})
	default:
		writeDetail(w, http.StatusBadGateway, memberauth.DisplayMessage(err))
	}
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	s.sdk.Session.Logout(r.Context())
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleMember(w http.ResponseWriter, r *http.Request) {
	m, err := s.sdk.Gateway.Profile(r.Context())
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

func (s *Server) handleEnquiry(w http.ResponseWriter, r *http.Request) {
	kind := enquiry.Kind(chi.URLParam(r, "kind"))

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid request body")
		return
	}

	receipt, err := s.enquiries.Submit(r.Context(), kind, payload)
	if errors.Is(err, enquiry.ErrUnknownKind) {
		writeDetail(w, http.StatusNotFound, "Unknown enquiry kind: "+string(kind))
		return
	}
	if err != nil {
		s.writeUpstreamError(w, r, err)
		return
	}

	writeJSON(w, http.StatusCreated, receipt)
}

func (s *Server) writeUpstreamError(w http.ResponseWriter, r *http.Request, err error) {
	var se *memberauth.StatusError
	if errors.As(err, &se) {
		writeDetail(w, se.Status, se.Message)
		return
	}

	observability.FromContext(r.Context()).Error("upstream call failed", slog.Any("error", err))
	writeDetail(w, http.StatusBadGateway, "Network error")
}

// safeReturnTo accepts only local absolute paths.
func safeReturnTo(v, fallback string) string {
	if !strings.HasPrefix(v, "/") || strings.HasPrefix(v, "//") || strings.HasPrefix(v, "/\\") {
		return fallback
	}
	return v
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"detail": msg})
}
