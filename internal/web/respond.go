package web

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/conorfennell/knolarchive/internal/domain"
	apperrors "github.com/conorfennell/knolarchive/internal/errors"
	"github.com/conorfennell/knolarchive/internal/storage"
)

const maxBodyBytes = 4 << 20

// errorBody is the wire form of an error.
type errorBody struct {
	Code     string                 `json:"code"`
	Message  string                 `json:"message"`
	Fields   []apperrors.FieldError `json:"fields,omitempty"`
	Metadata map[string]string      `json:"metadata,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("failed to write response", "error", err)
	}
}

// toErrorBody converts err for the wire. Infrastructure failures are not
// described to the caller.
func toErrorBody(err error) errorBody {
	body := errorBody{Code: string(apperrors.CodeOf(err)), Message: err.Error()}

	var verr *apperrors.ValidationError
	var conflict *apperrors.VersionConflictError
	var domainErr *apperrors.Error
	switch {
	case errors.As(err, &verr):
		body.Fields = verr.Fields
	case errors.As(err, &conflict):
		body.Metadata = map[string]string{
			"card_id":  conflict.CardID,
			"expected": strconv.FormatInt(conflict.Expected, 10),
			"actual":   strconv.FormatInt(conflict.Actual, 10),
		}
	case errors.As(err, &domainErr):
		body.Metadata = domainErr.Metadata
	}
	if !apperrors.IsDomain(err) {
		body.Code = "INTERNAL"
		body.Message = "internal error"
	}
	return body
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, storage.ErrSourceNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]errorBody{"error": {Code: "SOURCE_NOT_FOUND", Message: err.Error()}})
		return
	}
	kind := apperrors.KindOf(err)
	if !apperrors.IsDomain(err) {
		s.logger.Error("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, kind.HTTPStatus(), map[string]errorBody{"error": toErrorBody(err)})
}

// decode reads a JSON body into v, rejecting unknown fields.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return apperrors.Field("body", "exceeds %d bytes", maxErr.Limit)
		}
		if errors.Is(err, io.EOF) {
			return apperrors.Field("body", "is required")
		}
		return apperrors.Field("body", "invalid JSON: %v", err)
	}
	if dec.More() {
		return apperrors.Field("body", "must contain a single JSON value")
	}
	return nil
}

// versionParam reads the required ?version= query parameter.
func versionParam(r *http.Request) (int64, error) {
	raw := r.URL.Query().Get("version")
	if raw == "" {
		return 0, apperrors.Field("version", "query parameter is required")
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.Field("version", "must be an integer, got %q", raw)
	}
	return v, nil
}

func boolParam(r *http.Request, name string) (bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return false, nil
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		return false, apperrors.Field(name, "must be a boolean, got %q", raw)
	}
	return b, nil
}

func pathID(r *http.Request) (int64, error) {
	raw := r.PathValue("id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.Field("id", "invalid source ID %q", raw)
	}
	return id, nil
}

func requireAdmin(r *http.Request, action string) error {
	a := actor(r)
	if a.UserID == "" || a.Role != domain.RoleAdmin {
		return apperrors.Forbidden(action)
	}
	return nil
}

func fieldRequired(path string) error {
	return apperrors.Field(path, "is required")
}
