package http

import (
	"net/http"

	"kakeibo/internal/core"
	"kakeibo/internal/editor"
)

type editorResponse struct {
	State            string             `json:"state"`
	Date             *core.Date         `json:"date,omitempty"`
	ID               string             `json:"id,omitempty"`
	Draft            *editor.Draft      `json:"draft,omitempty"`
	ShowCategories   bool               `json:"show_categories"`
	CanSave          bool               `json:"can_save"`
	Categories       []string           `json:"categories,omitempty"`
	CustomCategories []string           `json:"custom_categories,omitempty"`
	DayTransactions  []core.Transaction `json:"day_transactions"`
}

func editorView(snap editor.Snapshot) editorResponse {
	resp := editorResponse{
		State:            snap.State.Name(),
		ShowCategories:   snap.ShowCategories,
		CanSave:          snap.CanSave,
		Categories:       snap.Categories,
		CustomCategories: snap.CustomCategories,
		DayTransactions:  snap.DayTransactions,
	}
	if resp.DayTransactions == nil {
		resp.DayTransactions = []core.Transaction{}
	}
	switch st := snap.State.(type) {
	case editor.Viewing:
		resp.Date = &st.Date
	case editor.Adding:
		resp.Date = &st.Date
		resp.Draft = &st.Draft
	case editor.Editing:
		resp.Date = &st.Date
		resp.ID = st.ID
		resp.Draft = &st.Draft
	}
	return resp
}

func (s *Server) writeEditor(w http.ResponseWriter, status int) {
	NewResponse().Status(status).JSON(editorView(s.deps.Editor.Snapshot())).Write(w)
}

// editorStep runs a transition that needs no input and answers with the
// resulting snapshot.
func (s *Server) editorStep(op string, step func() error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := step(); err != nil {
			s.fail(w, r, op, err)
			return
		}
		s.writeEditor(w, http.StatusOK)
	}
}

func (s *Server) handleEditor(w http.ResponseWriter, r *http.Request) {
	s.writeEditor(w, http.StatusOK)
}

func (s *Server) handleEditorSelect(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	date, err := core.ParseDate(p.Get("date"))
	if err != nil {
		UnprocessableEntityError(err.Error()).Write(w)
		return
	}
	s.editorStep("select", func() error { return s.deps.Editor.Select(date) })(w, r)
}

func (s *Server) handleEditorAdd(w http.ResponseWriter, r *http.Request) {
	s.editorStep("add", s.deps.Editor.AddNew)(w, r)
}

func (s *Server) handleEditorEdit(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	id := p.Get("id")
	s.editorStep("edit", func() error { return s.deps.Editor.Edit(id) })(w, r)
}

func (s *Server) handleEditorBack(w http.ResponseWriter, r *http.Request) {
	s.editorStep("back", s.deps.Editor.Back)(w, r)
}

func (s *Server) handleEditorClose(w http.ResponseWriter, r *http.Request) {
	s.deps.Editor.Close()
	s.writeEditor(w, http.StatusOK)
}

func (s *Server) handleEditorSave(w http.ResponseWriter, r *http.Request) {
	if _, err := s.deps.Editor.Save(r.Context()); err != nil {
		s.fail(w, r, "save", err)
		return
	}
	s.writeEditor(w, http.StatusOK)
}

func (s *Server) handleEditorDelete(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	id := p.Get("id")
	if err := s.deps.Editor.Delete(r.Context(), id); err != nil {
		s.fail(w, r, "delete", err)
		return
	}
	s.writeEditor(w, http.StatusOK)
}

func (s *Server) handleEditorToggleCategories(w http.ResponseWriter, r *http.Request) {
	s.editorStep("toggle categories", func() error {
		_, err := s.deps.Editor.ToggleCategoryManager()
		return err
	})(w, r)
}

// handleEditorDraft patches the fields present in the body. Switching the
// type drops a category the body did not set, since categories are per type.
func (s *Server) handleEditorDraft(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}

	var (
		date core.Date
		typ  core.Direction
		err  error
	)
	if p.Has("date") {
		if date, err = core.ParseDate(p.Get("date")); err != nil {
			UnprocessableEntityError(err.Error()).Write(w)
			return
		}
	}
	if p.Has("type") {
		if typ, err = ParseDirectionParam(p.Get("type"), false); err != nil {
			s.fail(w, r, "draft", err)
			return
		}
	}
	currency := ""
	if p.Has("currency") {
		currency = p.Get("currency")
		c, found := core.LookupCurrency(currency)
		if !found {
			UnprocessableEntityError(core.ErrInvalidCurrency.Error()).Write(w)
			return
		}
		currency = c.Code
	}

	err = s.deps.Editor.UpdateDraft(func(d editor.Draft) editor.Draft {
		if p.Has("date") {
			d = d.WithDate(date)
		}
		if p.Has("type") && typ != d.Type() {
			d = d.WithType(typ)
			if !p.Has("category") {
				d = d.WithCategory("")
			}
		}
		if p.Has("amount") {
			d = d.WithAmount(p.Get("amount"))
		}
		if currency != "" {
			d = d.WithCurrency(currency)
		}
		if p.Has("category") {
			d = d.WithCategory(p.Get("category"))
		}
		if p.Has("description") {
			d = d.WithDescription(p.Get("description"))
		}
		return d
	})
	if err != nil {
		s.fail(w, r, "draft", err)
		return
	}
	s.writeEditor(w, http.StatusOK)
}

func (s *Server) handleEditorAddCategory(w http.ResponseWriter, r *http.Request) {
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	name := p.Get("name")
	s.editorStep("add category", func() error {
		_, err := s.deps.Editor.AddCategory(name)
		return err
	})(w, r)
}

func (s *Server) handleEditorRemoveCategory(w http.ResponseWriter, r *http.Request) {
	name := sanitizeInput(r.PathValue("name"))
	s.editorStep("remove category", func() error {
		_, err := s.deps.Editor.RemoveCategory(name)
		return err
	})(w, r)
}
