package grading

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// QuestionType selects how a question is graded.
type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
)

func (t QuestionType) Valid() bool {
	return t == SingleChoice || t == MultipleChoice
}

// Kind is the shape of an Answer.
type Kind uint8

const (
	KindNone Kind = iota
	KindSingle
	KindMultiple
)

// Answer is either a single option or a set of options. On the wire it is a
// JSON string or a JSON array of strings.
type Answer struct {
	kind     Kind
	single   string
	multiple []string
}

func Single(v string) Answer { return Answer{kind: KindSingle, single: v} }

func Multiple(vals ...string) Answer {
	cp := make([]string, len(vals))
	copy(cp, vals)
	return Answer{kind: KindMultiple, multiple: cp}
}

func (a Answer) Kind() Kind   { return a.kind }
func (a Answer) IsZero() bool { return a.kind == KindNone }

// Value returns the single option; empty for other kinds.
func (a Answer) Value() string { return a.single }

// Values returns a copy of the option set; nil for other kinds.
func (a Answer) Values() []string {
	if a.kind != KindMultiple {
		return nil
	}
	cp := make([]string, len(a.multiple))
	copy(cp, a.multiple)
	return cp
}

// Options returns the options referenced by the answer regardless of kind.
func (a Answer) Options() []string {
	switch a.kind {
	case KindSingle:
		return []string{a.single}
	case KindMultiple:
		return a.Values()
	default:
		return nil
	}
}

// Fits reports whether the answer shape matches what the question type stores.
func (a Answer) Fits(t QuestionType) bool {
	switch t {
	case SingleChoice:
		return a.kind == KindSingle
	case MultipleChoice:
		return a.kind == KindMultiple
	default:
		return false
	}
}

// String renders the answer for review screens.
func (a Answer) String() string {
	switch a.kind {
	case KindSingle:
		return a.single
	case KindMultiple:
		return strings.Join(a.multiple, ", ")
	default:
		return ""
	}
}

func (a Answer) MarshalJSON() ([]byte, error) {
	switch a.kind {
	case KindSingle:
		return json.Marshal(a.single)
	case KindMultiple:
		if a.multiple == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(a.multiple)
	default:
		return []byte("null"), nil
	}
}

var errAnswerShape = errors.New("answer must be a string or an array of strings")

func (a *Answer) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	switch {
	case len(b) == 0 || bytes.Equal(b, []byte("null")):
		*a = Answer{}
		return nil
	case b[0] == '"':
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*a = Single(s)
		return nil
	case b[0] == '[':
		var vals []string
		if err := json.Unmarshal(b, &vals); err != nil {
			return errAnswerShape
		}
		*a = Multiple(vals...)
		return nil
	default:
		return errAnswerShape
	}
}

// FromAny converts decoded YAML/JSON values: a scalar or a list of scalars.
// Numbers and booleans become their text form.
func FromAny(v any) (Answer, error) {
	switch t := v.(type) {
	case nil:
		return Answer{}, nil
	case []string:
		return Multiple(t...), nil
	case []any:
		vals := make([]string, 0, len(t))
		for _, e := range t {
			s, ok := scalarText(e)
			if !ok {
				return Answer{}, errAnswerShape
			}
			vals = append(vals, s)
		}
		return Multiple(vals...), nil
	default:
		s, ok := scalarText(v)
		if !ok {
			return Answer{}, errAnswerShape
		}
		return Single(s), nil
	}
}

func scalarText(v any) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case int, int64, uint64, float64, bool:
		return fmt.Sprint(t), true
	default:
		return "", false
	}
}
