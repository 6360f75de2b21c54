package registry

import "net/http"

// Error builds an error-envelope Response for a given status.
func Error(status int, message string) Response {
	return Response{Status: status, Body: map[string]string{"error": message}, ContentType: "application/json; charset=utf-8"}
}

// ErrorWithCode builds an error-envelope Response carrying a short code tag.
func ErrorWithCode(status int, message, code string) Response {
	return Response{Status: status, Body: map[string]string{"error": message, "code": code}, ContentType: "application/json; charset=utf-8"}
}

// Convenience constructors for the error kinds in spec.md §7.
func ValidationError(message string) Response   { return ErrorWithCode(http.StatusBadRequest, message, "validation") }
func NotFoundError(message string) Response     { return ErrorWithCode(http.StatusNotFound, message, "not_found") }
func ConflictError(message string) Response     { return ErrorWithCode(http.StatusConflict, message, "conflict") }
func ForbiddenError(message string) Response    { return ErrorWithCode(http.StatusForbidden, message, "forbidden") }
func UnauthenticatedError(message string) Response {
	return ErrorWithCode(http.StatusUnauthorized, message, "unauthenticated")
}
func DBFailureError(message string) Response { return ErrorWithCode(http.StatusInternalServerError, message, "db_failure") }
func TimeoutError(message string) Response   { return ErrorWithCode(http.StatusGatewayTimeout, message, "timeout") }
func InternalError(message string) Response  { return ErrorWithCode(http.StatusInternalServerError, message, "internal") }
