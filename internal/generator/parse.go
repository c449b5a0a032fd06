package generator

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lamim/uxie/internal/api"
	"github.com/lamim/uxie/internal/util"
)

var (
	// ErrEmptyResponse means the model returned nothing, or JSON null
	ErrEmptyResponse = errors.New("empty response")
	// ErrNoJSON means the response contained no parseable JSON
	ErrNoJSON = errors.New("no JSON found in response")
)

// ParseError reports a model response that does not have the requested shape
type ParseError struct {
	Raw string
	Err error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse model output: %v", e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Decode parses a generation into T and runs validate on the result.
// Every failure is a *ParseError carrying the raw text.
func Decode[T any](gen *api.Generation, validate func(*T) error) (T, error) {
	var zero T
	if gen == nil {
		return zero, &ParseError{Err: ErrEmptyResponse}
	}

	raw := gen.Object
	if raw == nil {
		if strings.TrimSpace(gen.Text) == "" {
			return zero, &ParseError{Raw: gen.Text, Err: ErrEmptyResponse}
		}
		text := util.SanitizeJSON(util.ExtractJSON(gen.Text))
		if !json.Valid([]byte(text)) {
			return zero, &ParseError{Raw: gen.Text, Err: ErrNoJSON}
		}
		raw = json.RawMessage(text)
	}
	if trimmed := strings.TrimSpace(string(raw)); trimmed == "null" || trimmed == "{}" {
		return zero, &ParseError{Raw: gen.Text, Err: ErrEmptyResponse}
	}

	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return zero, &ParseError{Raw: gen.Text, Err: err}
	}
	if validate != nil {
		if err := validate(&v); err != nil {
			return zero, &ParseError{Raw: gen.Text, Err: err}
		}
	}
	return v, nil
}
