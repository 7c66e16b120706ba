package verify

import "fmt"

// StatusError reports a step whose response status differed from the expected one
type StatusError struct {
	Step     string
	Expected int
	Actual   int
	Body     []byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s: expected status %d, got %d", e.Step, e.Expected, e.Actual)
}

// FieldError reports a response whose decoded body did not carry the submitted values
type FieldError struct {
	Step  string
	Field string
	Want  string
	Got   string
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("%s: field %s: expected %s, got %s", e.Step, e.Field, e.Want, e.Got)
}
