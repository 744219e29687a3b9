package editor

import "kakeibo/internal/core"

// State is one of Closed, Viewing, Adding or Editing.
type State interface {
	Name() string
	isState()
}

type (
	Closed struct{}

	Viewing struct {
		Date core.Date
	}

	Adding struct {
		Date  core.Date
		Draft Draft
	}

	Editing struct {
		Date  core.Date
		ID    string
		Draft Draft
	}
)

func (Closed) Name() string  { return "closed" }
func (Viewing) Name() string { return "viewing" }
func (Adding) Name() string  { return "adding" }
func (Editing) Name() string { return "editing" }

func (Closed) isState()  {}
func (Viewing) isState() {}
func (Adding) isState()  {}
func (Editing) isState() {}

// dateOf returns the selected day, zero when Closed.
func dateOf(s State) core.Date {
	switch s := s.(type) {
	case Viewing:
		return s.Date
	case Adding:
		return s.Date
	case Editing:
		return s.Date
	}
	return core.Date{}
}

func draftOf(s State) (Draft, bool) {
	switch s := s.(type) {
	case Adding:
		return s.Draft, true
	case Editing:
		return s.Draft, true
	}
	return Draft{}, false
}

func withDraft(s State, d Draft) State {
	switch s := s.(type) {
	case Adding:
		s.Draft = d
		return s
	case Editing:
		s.Draft = d
		return s
	}
	return s
}
