// Package respond writes the JSON envelopes every API handler returns.
//
//	{"success":true,"data":...,"meta":{...}}
//	{"success":false,"error":{"kind":"NotFound","code":"TASK_NOT_FOUND","message":"Task not found"}}
package respond

import (
	"encoding/json"
	"net/http"

	"github.com/dalemusser/taskhub/internal/app/system/apperr"
	"github.com/dalemusser/taskhub/internal/app/system/limits"
	"go.uber.org/zap"
)

type envelope struct {
	Success bool       `json:"success"`
	Data    any        `json:"data,omitempty"`
	Meta    any        `json:"meta,omitempty"`
	Error   *errorBody `json:"error,omitempty"`
}

type errorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes a 200 success envelope.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, envelope{Success: true, Data: data})
}

// Created writes a 201 success envelope.
func Created(w http.ResponseWriter, data any) {
	JSON(w, http.StatusCreated, envelope{Success: true, Data: data})
}

// List writes a 200 success envelope with pagination meta.
func List(w http.ResponseWriter, data any, meta any) {
	JSON(w, http.StatusOK, envelope{Success: true, Data: data, Meta: meta})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(k apperr.Kind) int {
	switch k {
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindNotAuthorized:
		return http.StatusForbidden
	case apperr.KindValidation, apperr.KindInvalidReference, apperr.KindInvalidState:
		return http.StatusBadRequest
	case apperr.KindConflict:
		return http.StatusConflict
	case apperr.KindCredential:
		return http.StatusUnauthorized
	case apperr.KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

var errInternal = apperr.New(apperr.KindInternal, "INTERNAL_ERROR", "Something went wrong")

// Error renders err. Domain errors keep their code and message; anything
// else is logged and replaced by a generic internal error.
func Error(w http.ResponseWriter, r *http.Request, logger *zap.Logger, err error) {
	ae, ok := apperr.As(err)
	if !ok || ae.Kind == apperr.KindInternal {
		if logger != nil {
			logger.Error("request failed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Error(err))
		}
		ae = errInternal
	} else if logger != nil && ae.Unwrap() != nil {
		logger.Debug("request rejected",
			zap.String("path", r.URL.Path),
			zap.String("code", ae.Code),
			zap.Error(ae.Unwrap()))
	}
	JSON(w, StatusFor(ae.Kind), envelope{
		Error: &errorBody{Kind: ae.Kind, Code: ae.Code, Message: ae.Message},
	})
}

// Decode reads a JSON body into dst, rejecting unknown fields.
func Decode(r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, limits.MaxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return apperr.Validation("Request body must be valid JSON.").Wrap(err)
	}
	return nil
}
