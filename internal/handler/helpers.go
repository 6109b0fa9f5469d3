// Package handler exposes the JSON HTTP surface for carts, orders and
// payments.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fjellmark/njord/internal/domain"
	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// respondJSON writes v as a JSON response.
func respondJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		_ = json.NewEncoder(w).Encode(v)
	}
}

// errorResponse is the common error payload shape.
type errorResponse struct {
	Error          string               `json:"error"`
	Code           string               `json:"code,omitempty"`
	Fields         map[string]string    `json:"fields,omitempty"`
	Discrepancies  []domain.Discrepancy `json:"discrepancies,omitempty"`
	AvailableStock *int32               `json:"availableStock,omitempty"`
}

// respondError maps domain errors to HTTP status codes and payloads.
// Structured errors (validation discrepancies, insufficient stock) keep
// their detail so clients can drive remediation.
func respondError(w http.ResponseWriter, logger *slog.Logger, r *http.Request, err error) {
	var vf *domain.ValidationFailedError
	if errors.As(err, &vf) {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:         "Cart validation failed",
			Code:          domain.EINVALID,
			Discrepancies: vf.Discrepancies,
		})
		return
	}

	var is *domain.InsufficientStockError
	if errors.As(err, &is) {
		respondJSON(w, http.StatusConflict, errorResponse{
			Error:          is.Error(),
			Code:           domain.ECONFLICT,
			AvailableStock: &is.Available,
		})
		return
	}

	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		respondJSON(w, http.StatusBadRequest, errorResponse{
			Error:  "Validation failed",
			Code:   domain.EINVALID,
			Fields: ve.Fields,
		})
		return
	}

	code := domain.ErrorCode(err)
	status := statusFor(code)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(r.Context(), "request failed",
			slog.String("op", domain.ErrorOp(err)),
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}

	respondJSON(w, status, errorResponse{
		Error: domain.ErrorMessage(err),
		Code:  code,
	})
}

func statusFor(code string) int {
	switch code {
	case domain.EINVALID:
		return http.StatusBadRequest
	case domain.ENOTFOUND:
		return http.StatusNotFound
	case domain.ECONFLICT:
		return http.StatusConflict
	case domain.EPAYMENT:
		return http.StatusPaymentRequired
	case domain.EUNAVAILABLE:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// decodeAndValidate parses the JSON body into dst and runs struct
// validation, converting validator findings into field errors.
func decodeAndValidate(r *http.Request, dst any) error {
	defer r.Body.Close()

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return domain.Invalid("handler.decode", "invalid JSON body: "+err.Error())
	}

	if err := validate.Struct(dst); err != nil {
		var invalid *validator.InvalidValidationError
		if errors.As(err, &invalid) {
			return domain.Internal(err, "handler.validate", "validation setup error")
		}

		var fieldErr error
		for _, fe := range err.(validator.ValidationErrors) {
			fieldErr = domain.AddFieldError(fieldErr, fe.Field(), "failed "+fe.Tag()+" validation")
		}
		return fieldErr
	}

	return nil
}
