package http

import (
	"net/http"

	"kakeibo/internal/core"
	"kakeibo/internal/session"
)

type authResponse struct {
	Token   string        `json:"token"`
	Session *core.Session `json:"session"`
}

type sessionResponse struct {
	State   string        `json:"state"`
	Session *core.Session `json:"session,omitempty"`
}

func (s *Server) handleSignUp(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	sess, err := s.deps.Auth.SignUp(r.Context(), p.Get("email"), p.Get("password"))
	if err != nil {
		s.fail(w, r, "signup", err)
		return
	}
	NewResponse().Status(http.StatusCreated).JSON(authResponse{Token: sess.Token, Session: sess}).Write(w)
}

func (s *Server) handleSignIn(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	sess, err := s.deps.Auth.SignIn(r.Context(), p.Get("email"), p.Get("password"))
	if err != nil {
		s.fail(w, r, "signin", err)
		return
	}
	NewResponse().JSON(authResponse{Token: sess.Token, Session: sess}).Write(w)
}

func (s *Server) handleSignOut(w http.ResponseWriter, r *http.Request) {
	if err := s.deps.Auth.SignOut(r.Context()); err != nil {
		s.fail(w, r, "signout", err)
		return
	}
	NewResponse().Status(http.StatusNoContent).Write(w)
}

// handleSession reports the loader's state. The session itself is only
// included for a caller holding its token.
func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	state := session.Unknown
	if s.deps.Sessions != nil {
		state = s.deps.Sessions.State()
	}
	resp := sessionResponse{State: state.String()}
	if token := bearerToken(r); token != "" {
		if sess, err := s.deps.Auth.Authenticate(token); err == nil {
			resp.Session = sess
		}
	}
	NewResponse().JSON(resp).Write(w)
}
