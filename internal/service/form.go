package service

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnknownField = errors.New("unknown form field")
	ErrMissingField = errors.New("missing form field")
)

// Form field names accepted by Apply
const (
	FieldFirstDate  = "firstDate"
	FieldSecondDate = "secondDate"
	FieldText       = "text"
	FieldInput      = "input"
	FieldPrecision  = "precision"
)

// FormState is an immutable snapshot of the form. Apply returns a new
// value; the pipeline reads whichever snapshot is current at request
// time.
type FormState struct {
	FirstDate  string `json:"firstDate"`
	SecondDate string `json:"secondDate"`
	Text       string `json:"text"`
	Input      string `json:"input"`
	Precision  string `json:"precision"`
}

// FieldChange is one discrete edit of a form field
type FieldChange struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// DefaultForm is the form as first shown
func DefaultForm() FormState {
	return FormState{
		FirstDate:  "2015-01-01",
		SecondDate: "2015-01-02",
	}
}

// Apply returns the form with one field replaced
func (f FormState) Apply(c FieldChange) (FormState, error) {
	switch c.Name {
	case FieldFirstDate:
		f.FirstDate = c.Value
	case FieldSecondDate:
		f.SecondDate = c.Value
	case FieldText:
		f.Text = c.Value
	case FieldInput:
		f.Input = c.Value
	case FieldPrecision:
		f.Precision = c.Value
	default:
		return f, fmt.Errorf("%w: %q", ErrUnknownField, c.Name)
	}
	return f, nil
}

// requireFields checks presence only; values are forwarded verbatim
func (f FormState) requireFields(names ...string) error {
	var missing []string
	for _, n := range names {
		var v string
		switch n {
		case FieldFirstDate:
			v = f.FirstDate
		case FieldSecondDate:
			v = f.SecondDate
		case FieldInput:
			v = f.Input
		case FieldPrecision:
			v = f.Precision
		}
		if strings.TrimSpace(v) == "" {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingField, strings.Join(missing, ", "))
	}
	return nil
}
