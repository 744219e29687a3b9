package http

import (
	"net/http"

	"kakeibo/internal/categories"
	"kakeibo/internal/core"
)

type categoriesResponse struct {
	Type     core.Direction `json:"type"`
	Defaults []string       `json:"defaults"`
	Custom   []string       `json:"custom"`
	All      []string       `json:"all"`
}

func (s *Server) categoriesFor(d core.Direction) categoriesResponse {
	return categoriesResponse{
		Type:     d,
		Defaults: categories.Defaults(d),
		Custom:   s.deps.Categories.Custom(d),
		All:      s.deps.Categories.CategoriesFor(d),
	}
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	d, err := ParseDirectionParam(r.PathValue("type"), false)
	if err != nil {
		s.fail(w, r, "categories", err)
		return
	}
	NewResponse().JSON(s.categoriesFor(d)).Write(w)
}

// handleAddCategory answers 201 when the name was added and 200 when it
// was blank, a default or already present.
func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	d, err := ParseDirectionParam(r.PathValue("type"), false)
	if err != nil {
		s.fail(w, r, "add category", err)
		return
	}
	p, ok := parseBody(w, r)
	if !ok {
		return
	}
	status := http.StatusOK
	if s.deps.Categories.AddCustom(d, p.Get("name")) {
		status = http.StatusCreated
	}
	NewResponse().Status(status).JSON(s.categoriesFor(d)).Write(w)
}

func (s *Server) handleRemoveCategory(w http.ResponseWriter, r *http.Request) {
	d, err := ParseDirectionParam(r.PathValue("type"), false)
	if err != nil {
		s.fail(w, r, "remove category", err)
		return
	}
	name := sanitizeInput(r.PathValue("name"))
	if s.deps.Categories.RemoveCustom(d, name) {
		s.deps.Editor.ReleaseCategory(d, name)
	}
	NewResponse().JSON(s.categoriesFor(d)).Write(w)
}
