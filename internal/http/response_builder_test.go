package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"kakeibo/internal/auth"
	"kakeibo/internal/core"
	"kakeibo/internal/editor"
	"kakeibo/internal/store"
)

func TestResponseBuilder_JSON(t *testing.T) {
	w := httptest.NewRecorder()

	NewResponse().
		Status(http.StatusCreated).
		Header("X-Test", "1").
		JSON(map[string]int{"count": 2}).
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if w.Header().Get("X-Test") != "1" {
		t.Error("custom header not set")
	}
	var body map[string]int
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil || body["count"] != 2 {
		t.Errorf("body = %q, err = %v", w.Body.String(), err)
	}
}

func TestResponseBuilder_BytesAndEmpty(t *testing.T) {
	w := httptest.NewRecorder()
	NewResponse().Bytes("text/yaml", []byte("a: 1\n")).Write(w)
	if w.Header().Get("Content-Type") != "text/yaml" || w.Body.String() != "a: 1\n" {
		t.Errorf("bytes response = %q %q", w.Header().Get("Content-Type"), w.Body.String())
	}

	w = httptest.NewRecorder()
	NewResponse().Status(http.StatusNoContent).Write(w)
	if w.Code != http.StatusNoContent || w.Body.Len() != 0 {
		t.Errorf("empty response = %d %q", w.Code, w.Body.String())
	}
}

func TestErrorFor(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantBody string
	}{
		{"unauthenticated", core.ErrUnauthenticated, http.StatusUnauthorized, CodeUnauthenticated},
		{"bad credentials", auth.ErrInvalidCredentials, http.StatusUnauthorized, CodeInvalidCredentials},
		{"validation", fmt.Errorf("%w: amount", core.ErrValidationFailed), http.StatusUnprocessableEntity, CodeValidationFailed},
		{"not found", core.ErrNotFound, http.StatusNotFound, CodeNotFound},
		{"remote", &core.RemoteError{Op: "list", Err: errors.New("boom")}, http.StatusBadGateway, CodeRemoteError},
		{"transition", fmt.Errorf("%w: save while closed", editor.ErrInvalidTransition), http.StatusConflict, CodeInvalidTransition},
		{"email taken", store.ErrEmailTaken, http.StatusConflict, CodeEmailTaken},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			ErrorFor(tt.err).Write(w)
			if w.Code != tt.wantCode {
				t.Errorf("status = %d, want %d", w.Code, tt.wantCode)
			}
			var body errorBody
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body.Error.Code != tt.wantBody {
				t.Errorf("code = %q, want %q", body.Error.Code, tt.wantBody)
			}
		})
	}
}

func TestErrorForSurfacesRemoteMessage(t *testing.T) {
	w := httptest.NewRecorder()
	err := fmt.Errorf("add transaction: %w", &core.RemoteError{Op: "insert", Err: errors.New("quota exceeded for user")})
	ErrorFor(err).Write(w)
	if w.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", w.Code)
	}
	var body errorBody
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Error.Code != CodeRemoteError {
		t.Errorf("code = %q", body.Error.Code)
	}
	if body.Error.Message != "remote store insert: quota exceeded for user" {
		t.Errorf("message = %q", body.Error.Message)
	}
}

func TestErrorForHidesInternalDetail(t *testing.T) {
	w := httptest.NewRecorder()
	ErrorFor(errors.New("password=hunter2")).Write(w)
	var body errorBody
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body.Error.Message != "internal error" {
		t.Errorf("message = %q", body.Error.Message)
	}
}
