// Package action applies patch actions to a session.
//
// Apply is pure: it never touches storage and never mutates its input. Every
// field is sanitized before any change is made, so a failed action leaves no
// partial state behind. Unknown action names are accepted and change nothing.
package action

import (
	"time"

	"github.com/Quisharoo/manager-feedback-questions-sub000/session"
	"github.com/Quisharoo/manager-feedback-questions-sub000/validation"
)

// Name identifies a patch action.
type Name string

const (
	MarkAsked          Name = "markAsked"
	MarkSkipped        Name = "markSkipped"
	UndoAsked          Name = "undoAsked"
	UndoSkipped        Name = "undoSkipped"
	Reset              Name = "reset"
	SetAnswer          Name = "setAnswer"
	SetCurrentQuestion Name = "setCurrentQuestion"
)

var known = map[Name]struct{}{
	MarkAsked:          {},
	MarkSkipped:        {},
	UndoAsked:          {},
	UndoSkipped:        {},
	Reset:              {},
	SetAnswer:          {},
	SetCurrentQuestion: {},
}

// Known reports whether name is one of the accepted actions.
func Known(name string) bool {
	_, ok := known[Name(name)]
	return ok
}

// Request is one patch: an action plus its optional question and value.
type Request struct {
	Action   string
	Question *validation.QuestionInput
	Value    *string
}

// FromPatch converts a decoded patch body.
func FromPatch(p validation.PatchRequest) Request {
	return Request{Action: p.Action, Question: p.Question, Value: p.Value}
}

// Apply returns the session that results from req. s is not modified. When
// the action changes nothing (an unknown name, or an undo on an empty list)
// s itself is returned. Validation failures return a *validation.FieldError
// and no session.
func Apply(s *session.Session, req Request, now time.Time) (*session.Session, error) {
	if s == nil {
		return nil, session.ErrNotFound
	}
	name := Name(req.Action)
	if _, ok := known[name]; !ok {
		return s, nil
	}

	next := s.Clone()
	switch name {
	case MarkAsked, MarkSkipped:
		q, err := question(req.Question)
		if err != nil {
			return nil, err
		}
		if name == MarkAsked {
			next.Skipped = without(next.Skipped, q.Text)
			next.Asked = appendUnique(next.Asked, q)
		} else {
			next.Asked = without(next.Asked, q.Text)
			next.Skipped = appendUnique(next.Skipped, q)
		}

	case UndoAsked:
		if len(next.Asked) == 0 {
			return s, nil
		}
		next.Asked = next.Asked[:len(next.Asked)-1]

	case UndoSkipped:
		if len(next.Skipped) == 0 {
			return s, nil
		}
		next.Skipped = next.Skipped[:len(next.Skipped)-1]

	case Reset:
		next.Asked = []session.Question{}
		next.Skipped = []session.Question{}
		next.Answers = map[string]string{}
		next.CurrentQuestion = nil
		next.CurrentQuestionID = ""

	case SetAnswer:
		q, err := question(req.Question)
		if err != nil {
			return nil, err
		}
		var raw string
		if req.Value != nil {
			raw = *req.Value
		}
		value, err := validation.Answer(raw)
		if err != nil {
			return nil, err
		}
		if next.Answers == nil {
			next.Answers = map[string]string{}
		}
		next.Answers[q.Text] = value

	case SetCurrentQuestion:
		q, err := question(req.Question)
		if err != nil {
			return nil, err
		}
		next.CurrentQuestion = &q
		next.CurrentQuestionID = req.Question.ID
	}

	next.LastAccess = now.UnixMilli()
	return next, nil
}

// Transition adapts req into a session.Transition. Actions that change
// nothing become "no change" so the store skips the write.
func Transition(req Request, now func() time.Time) session.Transition {
	return func(current *session.Session) (*session.Session, error) {
		next, err := Apply(current, req, now())
		if err != nil {
			return nil, err
		}
		if next == current {
			return nil, nil
		}
		return next, nil
	}
}

func question(in *validation.QuestionInput) (session.Question, error) {
	if in == nil {
		in = &validation.QuestionInput{}
	}
	text, err := validation.Text(in.Text)
	if err != nil {
		return session.Question{}, err
	}
	theme, err := validation.Theme(in.Theme)
	if err != nil {
		return session.Question{}, err
	}
	return session.Question{Text: text, Theme: theme}, nil
}

// appendUnique appends q, first dropping any entry with the same text, so the
// list stays unique and most-recent-last.
func appendUnique(list []session.Question, q session.Question) []session.Question {
	return append(without(list, q.Text), q)
}

func without(list []session.Question, text string) []session.Question {
	out := make([]session.Question, 0, len(list))
	for _, q := range list {
		if q.Text != text {
			out = append(out, q)
		}
	}
	return out
}
