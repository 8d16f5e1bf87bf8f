package session

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// Question is an entry in the asked/skipped lists or the current-question
// pointer. Theme is optional.
type Question struct {
	Text  string `json:"text"`
	Theme string `json:"theme,omitempty"`
}

// UnmarshalJSON accepts both the object form and the bare-string form written
// by early records.
func (q *Question) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*q = Question{Text: text}
		return nil
	}

	type plain Question
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	*q = Question(p)
	return nil
}

// QuestionID identifies a catalog question. Older clients sent numbers.
type QuestionID string

// UnmarshalJSON accepts strings, numbers and null.
func (id *QuestionID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case len(data) == 0 || bytes.Equal(data, []byte("null")):
		*id = ""
		return nil
	case data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = QuestionID(s)
		return nil
	default:
		var n json.Number
		if err := json.Unmarshal(data, &n); err != nil {
			return err
		}
		if i, err := n.Int64(); err == nil {
			*id = QuestionID(strconv.FormatInt(i, 10))
			return nil
		}
		*id = QuestionID(n.String())
		return nil
	}
}

// Session is the only persisted entity.
//
// Timestamps are epoch milliseconds. EditKeyHash and ViewKeyHash hold keyed
// digests of the capability secrets; a record without EditKeyHash predates
// capability keys (or, when Cap is set, is corrupt).
type Session struct {
	SchemaVersion uint8 `json:"schemaVersion,omitempty"`
	Version       int64 `json:"version,omitempty"`

	ID         string `json:"id"`
	Name       string `json:"name"`
	CreatedAt  int64  `json:"createdAt"`
	LastAccess int64  `json:"lastAccess"`

	EditKeyHash string `json:"editKeyHash,omitempty"`
	ViewKeyHash string `json:"viewKeyHash,omitempty"`
	Cap         bool   `json:"cap,omitempty"`

	Asked             []Question        `json:"asked"`
	Skipped           []Question        `json:"skipped"`
	Answers           map[string]string `json:"answers"`
	CurrentQuestion   *Question         `json:"currentQuestion,omitempty"`
	CurrentQuestionID QuestionID        `json:"currentQuestionId,omitempty"`
}

// Keyed reports whether the session carries an edit key digest.
func (s *Session) Keyed() bool {
	return s != nil && s.EditKeyHash != ""
}

// Clone returns a deep copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	if s.Asked != nil {
		out.Asked = append([]Question(nil), s.Asked...)
	}
	if s.Skipped != nil {
		out.Skipped = append([]Question(nil), s.Skipped...)
	}
	if s.Answers != nil {
		out.Answers = make(map[string]string, len(s.Answers))
		for k, v := range s.Answers {
			out.Answers[k] = v
		}
	}
	if s.CurrentQuestion != nil {
		q := *s.CurrentQuestion
		out.CurrentQuestion = &q
	}
	return &out
}

// normalize replaces nil collections with empty ones so every decoded record
// has the zero-value shape of a freshly created one.
func (s *Session) normalize() {
	if s.Asked == nil {
		s.Asked = []Question{}
	}
	if s.Skipped == nil {
		s.Skipped = []Question{}
	}
	if s.Answers == nil {
		s.Answers = map[string]string{}
	}
}
