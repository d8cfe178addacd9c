package rpc

import (
	"encoding/json"
	"net/http"

	"ledgerprograms/core/types"
)

// ErrorBody is the error envelope returned by every endpoint.
type ErrorBody struct {
	Program string `json:"program,omitempty"`
	Code    uint32 `json:"code,omitempty"`
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type errorResponse struct {
	Error     *ErrorBody `json:"error"`
	RequestID string     `json:"requestId,omitempty"`
}

// statusForKind maps rejection kinds onto HTTP statuses.
func statusForKind(kind types.ErrorKind) int {
	switch kind {
	case types.KindValidation, types.KindArithmetic:
		return http.StatusBadRequest
	case types.KindAuthorization:
		return http.StatusForbidden
	case types.KindPrecondition:
		return http.StatusUnprocessableEntity
	case types.KindCollision:
		return http.StatusConflict
	case types.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

// writeLedgerError renders a host or program rejection. Internal errors are
// not echoed to the client.
func writeLedgerError(w http.ResponseWriter, r *http.Request, err error) {
	pe, ok := types.AsProgramError(err)
	if !ok {
		writeError(w, r, http.StatusInternalServerError, &ErrorBody{Kind: types.KindInternal.String(), Message: "internal error"})
		return
	}
	writeError(w, r, statusForKind(pe.Kind), &ErrorBody{
		Program: pe.Program,
		Code:    pe.Code,
		Kind:    pe.Kind.String(),
		Message: err.Error(),
	})
}

func writeError(w http.ResponseWriter, r *http.Request, status int, body *ErrorBody) {
	if status <= 0 {
		status = http.StatusBadRequest
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(errorResponse{Error: body, RequestID: RequestIDFromContext(r.Context())})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
