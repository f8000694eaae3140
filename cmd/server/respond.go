package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/awkward-3312/SDSinventory/internal/costing"
	"github.com/awkward-3312/SDSinventory/internal/logger"
	"github.com/awkward-3312/SDSinventory/internal/model"
)

const maxBodyBytes = 1 << 20

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// fieldErrors maps a JSON field name to the validation tag it failed.
type fieldErrors map[string]string

func (fe fieldErrors) Error() string {
	parts := make([]string, 0, len(fe))
	for field, tag := range fe {
		parts = append(parts, field+": "+tag)
	}
	return "invalid fields: " + strings.Join(parts, ", ")
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

func processValidationErrors(err error) fieldErrors {
	var ves validator.ValidationErrors
	if !errors.As(err, &ves) {
		return nil
	}
	out := make(fieldErrors, len(ves))
	for _, ve := range ves {
		out[ve.Field()] = ve.Tag()
	}
	return out
}

// decodeJSON reads a single JSON object from the request body into dst and validates it.
func (s *server) decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: malformed JSON body: %v", model.ErrValidation, err)
	}
	if err := s.validate.Struct(dst); err != nil {
		if fe := processValidationErrors(err); fe != nil {
			return fe
		}
		return fmt.Errorf("%w: %v", model.ErrValidation, err)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(err error) int {
	var fe fieldErrors
	switch {
	case errors.As(err, &fe):
		return http.StatusBadRequest
	case costing.IsCostingError(err), errors.Is(err, model.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, model.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	resp := errorResponse{Error: err.Error()}

	var fe fieldErrors
	if errors.As(err, &fe) {
		resp.Fields = fe
	}
	if status == http.StatusInternalServerError {
		logger.Error(r.Context(), "request failed",
			logger.String("method", r.Method),
			logger.String("path", r.URL.Path),
			logger.ErrorF(err),
		)
		resp.Error = http.StatusText(status)
	}
	writeJSON(w, status, resp)
}
