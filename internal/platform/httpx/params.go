package httpx

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/billtrack/billtrack/internal/shared"
)

// PathID parses a positive integer URL parameter.
func PathID(r *http.Request, name string) (int64, error) {
	raw := chi.URLParam(r, name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s %q: %w", name, raw, shared.ErrInvalidInput)
	}
	return id, nil
}

// QueryInt parses an optional integer query parameter, returning fallback
// when it is absent.
func QueryInt(r *http.Request, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%s %q: %w", name, raw, shared.ErrInvalidInput)
	}
	return v, nil
}

// QueryID parses an optional positive id query parameter, zero when absent.
func QueryID(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%s %q: %w", name, raw, shared.ErrInvalidInput)
	}
	return id, nil
}

// Validate runs struct validation and folds failures into shared.ErrInvalidInput.
func Validate(v *validator.Validate, payload any) error {
	if err := v.Struct(payload); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(fieldErrs))
			for _, fe := range fieldErrs {
				fields = append(fields, fe.Field()+" "+fe.Tag())
			}
			return fmt.Errorf("%s: %w", strings.Join(fields, ", "), shared.ErrInvalidInput)
		}
		return fmt.Errorf("%v: %w", err, shared.ErrInvalidInput)
	}
	return nil
}
