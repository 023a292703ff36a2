// Package handlers implements the gin handlers of the KinKeep HTTP API.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/turtacn/KinKeep/internal/interfaces/http/middleware"
	"github.com/turtacn/KinKeep/pkg/errors"
	"github.com/turtacn/KinKeep/pkg/types/common"
)

// respond writes data inside the standard success envelope.
func respond[T any](c *gin.Context, status int, data T) {
	c.JSON(status, common.APIResponse[T]{
		Success:   true,
		Data:      data,
		RequestID: c.GetString(middleware.HeaderRequestID),
	})
}

// respondError maps err to a status through its error code. Server-side
// failures are masked so storage details do not reach the client.
func respondError(c *gin.Context, err error) {
	code := errors.GetCode(err)
	if code == errors.CodeUnknown {
		code = errors.ErrCodeInternal
	}
	status := errors.HTTPStatusForCode(code)

	detail := &common.ErrorDetail{Code: string(code)}
	var ae *errors.AppError
	if status < http.StatusInternalServerError && errors.As(err, &ae) {
		detail.Message = ae.Message
		detail.Detail = ae.Detail
	} else {
		detail.Message = errors.DefaultMessageForCode(code)
	}
	if code == errors.ErrCodeImportFailed {
		detail.Message = errors.DefaultMessageForCode(code)
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, common.APIResponse[any]{
		Error:     detail,
		RequestID: c.GetString(middleware.HeaderRequestID),
	})
}

// bindJSON decodes the body into dst, answering 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		respondError(c, errors.Wrap(err, errors.ErrCodeBadRequest, "request body is not valid JSON"))
		return false
	}
	return true
}
