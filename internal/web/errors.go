// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatehouse Contributors

package web

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/oops"

	"github.com/gatehouse/gatehouse/internal/auth"
	"github.com/gatehouse/gatehouse/pkg/errutil"
)

// Codes produced by the HTTP layer itself.
const (
	CodeBodyTooLarge = "HTTP_BODY_TOO_LARGE"
	CodeInternal     = "INTERNAL"
)

const internalMessage = "internal server error"

// statusFor maps an error code to its HTTP status. Unknown codes are internal.
func statusFor(code string) int {
	switch code {
	case auth.CodeValidation:
		return http.StatusBadRequest
	case auth.CodeInvalidCredentials, auth.CodeInvalidToken, auth.CodeUnauthorized:
		return http.StatusUnauthorized
	case auth.CodeAccountLocked:
		return http.StatusTooManyRequests
	case auth.CodeUsernameTaken:
		return http.StatusConflict
	case CodeBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as an ErrorResponse and returns the status used.
// Internal errors are logged and their details withheld.
func (h *Handler) respondError(w http.ResponseWriter, r *http.Request, err error) int {
	code := errutil.Code(err)
	status := statusFor(code)

	if status == http.StatusInternalServerError {
		errutil.LogErrorContext(r.Context(), h.logger, "request failed", err)
		writeError(w, status, CodeInternal, internalMessage)
		return status
	}

	msg := err.Error()
	if oopsErr, ok := oops.AsOops(err); ok {
		if status == http.StatusUnauthorized && code != auth.CodeInvalidCredentials {
			// Token failures all look alike to the caller.
			msg = "missing or invalid credentials"
			code = auth.CodeUnauthorized
		}
		if d, ok := oopsErr.Context()["retry_after"].(time.Duration); ok && d > 0 {
			w.Header().Set("Retry-After", strconv.Itoa(int(math.Ceil(d.Seconds()))))
		}
	}
	writeError(w, status, code, msg)
	return status
}
