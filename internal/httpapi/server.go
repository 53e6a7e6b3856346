// Package httpapi exposes the account service over HTTP.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/portalauth"
	"github.com/MrEthical07/portalauth/metrics"
	"github.com/MrEthical07/portalauth/middleware"
	"github.com/MrEthical07/portalauth/permission"
)

// TokenHeader carries the signed token on a successful login.
const TokenHeader = "Jwt-Token"

// Options wires a Server. Service and Filter are required.
type Options struct {
	Service *portalauth.Service
	Filter  *middleware.Filter
	// Metrics, when set, instruments every request and serves /metrics.
	Metrics *metrics.Collector
	Logger  logrus.FieldLogger

	// LoginRate and LoginBurst bound login and register per client address.
	LoginRate  float64
	LoginBurst int
	// TrustedProxies are the peers whose X-Forwarded-For header is believed.
	TrustedProxies []netip.Prefix
}

// Server is the HTTP surface of the portal.
type Server struct {
	svc     *portalauth.Service
	filter  *middleware.Filter
	metrics *metrics.Collector
	log     logrus.FieldLogger
	clients clientResolver
	limiter *clientLimiter
	mux     *http.ServeMux
}

// New builds the routes.
func New(opts Options) (*Server, error) {
	if opts.Service == nil || opts.Filter == nil {
		return nil, errors.New("httpapi: service and filter are required")
	}
	if opts.Logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		opts.Logger = l
	}
	if opts.LoginRate <= 0 {
		opts.LoginRate = 1
	}
	if opts.LoginBurst <= 0 {
		opts.LoginBurst = 10
	}
	clients := clientResolver{trusted: opts.TrustedProxies}
	limiter, err := newClientLimiter(opts.LoginRate, opts.LoginBurst, clients)
	if err != nil {
		return nil, err
	}

	s := &Server{
		svc:     opts.Service,
		filter:  opts.Filter,
		metrics: opts.Metrics,
		log:     opts.Logger,
		clients: clients,
		limiter: limiter,
		mux:     http.NewServeMux(),
	}
	s.routes()
	return s, nil
}

func (s *Server) routes() {
	authenticated := middleware.RequireAuthenticated(deny)

	s.mux.Handle("POST /user/login", s.limiter.wrap(http.HandlerFunc(s.login)))
	s.mux.Handle("POST /user/register", s.limiter.wrap(http.HandlerFunc(s.register)))
	s.mux.Handle("POST /user/add", middleware.RequireAuthority(deny, permission.UserCreate)(http.HandlerFunc(s.add)))
	s.mux.Handle("POST /user/update", middleware.RequireAuthority(deny, permission.UserUpdate)(http.HandlerFunc(s.update)))
	s.mux.Handle("DELETE /user/delete/{id}", middleware.RequireAuthority(deny, permission.UserDelete)(http.HandlerFunc(s.delete)))
	s.mux.HandleFunc("GET /user/resetPassword/{email}", s.resetPassword)
	s.mux.Handle("GET /user/find/{username}", authenticated(http.HandlerFunc(s.find)))
	s.mux.Handle("GET /user/list", authenticated(http.HandlerFunc(s.list)))

	s.mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics.Handler())
	}
	s.mux.HandleFunc("/", func(w http.ResponseWriter, _ *http.Request) {
		writeResponse(w, http.StatusNotFound, messageNotFound)
	})
}

// Handler returns the full middleware chain around the routes.
func (s *Server) Handler() http.Handler {
	var h http.Handler = s.filter.Handler(s.mux)
	h = maxBody(h)
	if s.metrics != nil {
		h = s.metrics.Instrument(h)
	}
	return logging(s.log, s.clients, h)
}

func (s *Server) fail(w http.ResponseWriter, r *http.Request, err error) {
	code, msg := statusFor(err)
	if code == http.StatusInternalServerError {
		s.log.WithError(err).WithField("path", r.URL.Path).Error("request failed")
	}
	writeResponse(w, code, msg)
}

func decode(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body", portalauth.ErrInvalidInput)
	}
	return nil
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	u, token, err := s.svc.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	w.Header().Set(TokenHeader, token)
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) register(w http.ResponseWriter, r *http.Request) {
	var in portalauth.RegisterInput
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.svc.Register(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) add(w http.ResponseWriter, r *http.Request) {
	var in portalauth.UserInput
	if err := decode(r, &in); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.svc.AddUser(r.Context(), in)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

type updateRequest struct {
	CurrentUsername string `json:"currentUsername"`
	portalauth.UserInput
}

func (s *Server) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decode(r, &req); err != nil {
		s.fail(w, r, err)
		return
	}
	u, err := s.svc.UpdateUser(r.Context(), req.CurrentUsername, req.UserInput)
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) delete(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteUser(r.Context(), r.PathValue("id")); err != nil {
		s.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) resetPassword(w http.ResponseWriter, r *http.Request) {
	email := r.PathValue("email")
	if err := s.svc.ResetPassword(r.Context(), email); err != nil {
		s.fail(w, r, err)
		return
	}
	writeResponse(w, http.StatusOK, "Email with new password was sent to: "+email)
}

func (s *Server) find(w http.ResponseWriter, r *http.Request) {
	u, err := s.svc.FindByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		s.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) list(w http.ResponseWriter, r *http.Request) {
	users, err := s.svc.List(r.Context())
	if err != nil {
		s.fail(w, r, err)
		return
	}
	if users == nil {
		users = []portalauth.User{}
	}
	writeJSON(w, http.StatusOK, users)
}
