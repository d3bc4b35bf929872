package http

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"reflect"
	"strings"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/Dajus/daal-sub000/internal/training"
)

const maxBodyBytes = 1 << 20

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// report fields by their json names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		if name == "" {
			return f.Name
		}
		return name
	})
	return v
}

func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

type errorBody struct {
	Error  string            `json:"error"`
	Code   string            `json:"code"`
	Fields map[string]string `json:"fields,omitempty"`
}

var statusByKind = map[training.Kind]int{
	training.KindValidation: http.StatusBadRequest,
	training.KindAuth:       http.StatusUnauthorized,
	training.KindCapacity:   http.StatusUnauthorized,
	training.KindNotFound:   http.StatusNotFound,
	training.KindPolicy:     http.StatusBadRequest,
	training.KindConflict:   http.StatusConflict,
	training.KindInternal:   http.StatusInternalServerError,
}

// respondError maps a domain error to its status. Internal errors are logged
// with the request id and answered with a generic message.
func respondError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	kind := training.KindOf(err)
	status, ok := statusByKind[kind]
	if !ok {
		status = http.StatusInternalServerError
	}
	if kind == training.KindInternal {
		log.ErrorContext(r.Context(), "request failed",
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method, "path", r.URL.Path, "err", err)
	}
	respondJSON(w, status, errorBody{
		Error:  training.Message(err),
		Code:   string(kind),
		Fields: training.FieldsOf(err),
	})
}

func badRequest(w http.ResponseWriter, msg string, fields map[string]string) {
	respondJSON(w, http.StatusBadRequest, errorBody{Error: msg, Code: string(training.KindValidation), Fields: fields})
}

// decode reads a JSON body into dst and runs struct validation on it. It
// answers the request itself and returns false when the body is unusable.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			respondJSON(w, http.StatusRequestEntityTooLarge, errorBody{Error: "request body too large", Code: string(training.KindValidation)})
		case errors.Is(err, io.EOF):
			badRequest(w, "request body required", nil)
		default:
			badRequest(w, "invalid JSON body", nil)
		}
		return false
	}
	if err := validate.Struct(dst); err != nil {
		var ve validator.ValidationErrors
		if !errors.As(err, &ve) {
			badRequest(w, "invalid request", nil)
			return false
		}
		fields := make(map[string]string, len(ve))
		for _, fe := range ve {
			fields[fe.Field()] = fe.Tag()
		}
		badRequest(w, "validation failed", fields)
		return false
	}
	return true
}
