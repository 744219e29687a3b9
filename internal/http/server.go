package http

import (
	"context"
	"net/http"
	"sync"
	"time"

	"kakeibo/internal/backend"
	"kakeibo/internal/categories"
	"kakeibo/internal/core"
	"kakeibo/internal/editor"
	"kakeibo/internal/log"
	"kakeibo/internal/middleware/ratelimit"
	"kakeibo/internal/middleware/security"
	"kakeibo/internal/middleware/trace"
	"kakeibo/internal/session"
)

// Authenticator is the session provider as seen by the API.
type Authenticator interface {
	SignUp(ctx context.Context, email, password string) (*core.Session, error)
	SignIn(ctx context.Context, email, password string) (*core.Session, error)
	SignOut(ctx context.Context) error
	Authenticate(token string) (*core.Session, error)
}

// SessionState reports what the loader currently believes.
type SessionState interface {
	State() session.State
	Ready() bool
}

// Ledger is the repository surface the handlers use.
type Ledger interface {
	Transactions() []core.Transaction
	Get(id string) (core.Transaction, bool)
	Version() uint64
	Load(ctx context.Context) error
	Add(ctx context.Context, tx core.Transaction) (core.Transaction, error)
	Update(ctx context.Context, id string, tx core.Transaction) (core.Transaction, error)
	Delete(ctx context.Context, id string) error
}

// Deps are the collaborators a Server routes to. Pinger and SigninLimit
// are optional.
type Deps struct {
	Auth        Authenticator
	Sessions    SessionState
	Ledger      Ledger
	Editor      *editor.Editor
	Categories  *categories.Manager
	Pinger      backend.Pinger
	Logger      *log.Logger
	Currency    string
	Now         func() time.Time
	SigninLimit *ratelimit.Config
}

type Server struct {
	http.Server

	deps     Deps
	logger   *log.Logger
	now      func() time.Time
	detector *security.Detector
	tracer   *trace.Middleware
	limiter  *ratelimit.Limiter

	shutdownOnce sync.Once
}

func NewServer(addr string, deps Deps) *Server {
	if deps.Logger == nil {
		deps.Logger = log.Default(log.ComponentHTTP)
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Currency == "" {
		deps.Currency = core.DefaultCurrency
	}
	limit := ratelimit.DefaultConfig()
	if deps.SigninLimit != nil {
		limit = *deps.SigninLimit
	}

	s := &Server{
		deps:     deps,
		logger:   deps.Logger,
		now:      deps.Now,
		detector: security.NewDetector(deps.Logger),
		limiter:  ratelimit.NewLimiter(limit),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, deps.Logger)

	mux := http.NewServeMux()
	s.routes(mux)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	var handler http.Handler = mux
	handler = log.RequestIDMiddleware(trace.RequestIDFromRequest)(handler)
	handler = log.Middleware(deps.Logger)(handler)
	handler = s.detector.Middleware(handler)
	handler = headers.Middleware(handler)
	handler = s.tracer.Middleware(handler)

	s.Server = http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

func (s *Server) routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)

	signinLimit := s.limiter.Middleware(s.detector.ExtractClientIP, func(w http.ResponseWriter, r *http.Request) {
		s.logger.WarnContext(r.Context(), "Sign-in rate limit exceeded", log.FieldClientIP, s.detector.ExtractClientIP(r))
		ErrorResponse(http.StatusTooManyRequests, "rate_limited", "too many sign-in attempts").Write(w)
	})
	mux.HandleFunc("POST /auth/signup", s.handleSignUp)
	mux.Handle("POST /auth/signin", signinLimit(http.HandlerFunc(s.handleSignIn)))
	mux.HandleFunc("POST /auth/signout", s.requireAuth(s.handleSignOut))
	mux.HandleFunc("GET /auth/session", s.handleSession)

	mux.HandleFunc("GET /currencies", handleCurrencies)

	mux.HandleFunc("GET /transactions", s.requireAuth(s.handleListTransactions))
	mux.HandleFunc("POST /transactions", s.requireAuth(s.handleCreateTransaction))
	mux.HandleFunc("POST /transactions/reload", s.requireAuth(s.handleReload))
	mux.HandleFunc("GET /transactions/{id}", s.requireAuth(s.handleGetTransaction))
	mux.HandleFunc("PUT /transactions/{id}", s.requireAuth(s.handleUpdateTransaction))
	mux.HandleFunc("DELETE /transactions/{id}", s.requireAuth(s.handleDeleteTransaction))

	mux.HandleFunc("GET /calendar/day/{date}", s.requireAuth(s.handleDay))
	mux.HandleFunc("GET /calendar/month", s.requireAuth(s.handleMonth))
	mux.HandleFunc("GET /calendar/options", s.handleOptions)
	mux.HandleFunc("GET /analytics/monthly", s.requireAuth(s.handleMonthly))
	mux.HandleFunc("GET /reports/categories", s.requireAuth(s.handleCategoryReport))

	mux.HandleFunc("GET /categories/{type}", s.requireAuth(s.handleListCategories))
	mux.HandleFunc("POST /categories/{type}", s.requireAuth(s.handleAddCategory))
	mux.HandleFunc("DELETE /categories/{type}/{name}", s.requireAuth(s.handleRemoveCategory))

	mux.HandleFunc("GET /editor", s.requireAuth(s.handleEditor))
	mux.HandleFunc("POST /editor/select", s.requireAuth(s.handleEditorSelect))
	mux.HandleFunc("POST /editor/add", s.requireAuth(s.handleEditorAdd))
	mux.HandleFunc("POST /editor/edit", s.requireAuth(s.handleEditorEdit))
	mux.HandleFunc("POST /editor/back", s.requireAuth(s.handleEditorBack))
	mux.HandleFunc("POST /editor/close", s.requireAuth(s.handleEditorClose))
	mux.HandleFunc("POST /editor/save", s.requireAuth(s.handleEditorSave))
	mux.HandleFunc("POST /editor/delete", s.requireAuth(s.handleEditorDelete))
	mux.HandleFunc("POST /editor/toggle-categories", s.requireAuth(s.handleEditorToggleCategories))
	mux.HandleFunc("PATCH /editor/draft", s.requireAuth(s.handleEditorDraft))
	mux.HandleFunc("POST /editor/categories", s.requireAuth(s.handleEditorAddCategory))
	mux.HandleFunc("DELETE /editor/categories/{name}", s.requireAuth(s.handleEditorRemoveCategory))

	mux.HandleFunc("GET /export", s.requireAuth(s.handleExport))
}

// requireAuth rejects requests without a bearer token for the active session.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := s.deps.Auth.Authenticate(bearerToken(r))
		if err != nil {
			ErrorFor(err).Write(w)
			return
		}
		next(w, r.WithContext(withSession(r.Context(), sess)))
	}
}

// Shutdown gracefully shuts down the server and stops the sign-in limiter.
func (s *Server) Shutdown(ctx context.Context) error {
	s.shutdownOnce.Do(s.limiter.Stop)
	return s.Server.Shutdown(ctx)
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]string{"status": "ok"}).Write(w)
}

// handleReady reports ready once the first session event is resolved and
// the backend, when it has a server, answers.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if s.deps.Sessions != nil && !s.deps.Sessions.Ready() {
		ErrorResponse(http.StatusServiceUnavailable, CodeNotReady, "session state unknown").Write(w)
		return
	}
	if s.deps.Pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := s.deps.Pinger.Ping(ctx); err != nil {
			s.logger.WarnContext(r.Context(), "Readiness ping failed", "error", err)
			ErrorResponse(http.StatusServiceUnavailable, CodeNotReady, "backend unreachable").Write(w)
			return
		}
	}
	NewResponse().JSON(map[string]string{"status": "ready"}).Write(w)
}

// fail writes the mapped error and logs anything that is not a client mistake.
func (s *Server) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	resp := ErrorFor(err)
	if resp.statusCode >= http.StatusInternalServerError {
		s.logger.ErrorContext(r.Context(), "Request failed", log.FieldOperation, op, "error", err)
	}
	resp.Write(w)
}

// parseBody parses the request body, writing a 400 on failure.
func parseBody(w http.ResponseWriter, r *http.Request) (*RequestBodyParser, bool) {
	p := NewRequestBodyParser(r)
	if err := p.Parse(); err != nil {
		BadRequestError(err.Error()).Write(w)
		return nil, false
	}
	return p, true
}
