package server

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// analyzeParams are the query parameters of /api/analyze. Paths and Seed
// override the uploaded simulation settings when set.
type analyzeParams struct {
	Format string `default:"json" validate:"oneof=json yaml csv"`
	Paths  int    `validate:"gte=0"`
	Seed   uint64
}

// parseAnalyzeParams reads, defaults and validates the query parameters.
func parseAnalyzeParams(query url.Values) (analyzeParams, error) {
	var p analyzeParams
	p.Format = strings.ToLower(strings.TrimSpace(query.Get("format")))

	if v := strings.TrimSpace(query.Get("paths")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("paths must be an integer, got %q", v)
		}
		p.Paths = n
	}
	if v := strings.TrimSpace(query.Get("seed")); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return p, fmt.Errorf("seed must be an unsigned integer, got %q", v)
		}
		p.Seed = n
	}

	if err := defaults.Set(&p); err != nil {
		return p, err
	}
	if err := validate.Struct(p); err != nil {
		return p, validationMessage(err)
	}
	return p, nil
}

// validationMessage flattens validator errors into one readable error.
func validationMessage(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return err
	}
	msgs := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		field := strings.ToLower(fe.Field())
		switch fe.Tag() {
		case "required":
			msgs = append(msgs, fmt.Sprintf("%s is required", field))
		case "oneof":
			msgs = append(msgs, fmt.Sprintf("unsupported %s %q, expected one of: %s",
				field, fmt.Sprint(fe.Value()), strings.ReplaceAll(fe.Param(), " ", ", ")))
		case "gt":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than %s", field, fe.Param()))
		case "gte":
			msgs = append(msgs, fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param()))
		default:
			msgs = append(msgs, fmt.Sprintf("%s failed validation: %s", field, fe.Tag()))
		}
	}
	return errors.New(strings.Join(msgs, "; "))
}
