package handlers

import (
	"net/http"

	"github.com/deptconnect/portal/pkg/errs"
	"github.com/gin-gonic/gin"
)

// statusFor maps a portal error onto an HTTP status.
func statusFor(err error) int {
	if errs.IsConfig(err) {
		return http.StatusServiceUnavailable
	}
	switch errs.CodeOf(err) {
	case errs.CodeBadCredential, errs.CodeInvalidToken:
		return http.StatusUnauthorized
	case errs.CodeDuplicateAccount:
		return http.StatusConflict
	case errs.CodeWeakPassword, errs.CodeInvalidEmail, errs.CodeInvalidArgument:
		return http.StatusBadRequest
	case errs.CodePermissionDenied:
		return http.StatusForbidden
	case errs.CodeNotFound:
		return http.StatusNotFound
	case errs.CodeNetwork:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func respondError(c *gin.Context, err error) {
	c.JSON(statusFor(err), gin.H{"error": errs.Message(err), "code": errs.CodeOf(err)})
}
