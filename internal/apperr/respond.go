package apperr

import (
	"errors"

	"github.com/gin-gonic/gin"
)

// Respond writes err as the JSON error body and aborts the handler chain.
// The error is also attached to the context so the request logger sees the
// underlying cause.
func Respond(c *gin.Context, err error) {
	_ = c.Error(err)

	var e *Error
	if !errors.As(err, &e) {
		e = ErrInternal
	}

	body := gin.H{"error": e.Message, "code": e.Code}
	if e.Details != nil {
		body["details"] = e.Details
	}
	c.AbortWithStatusJSON(e.HTTPStatus(), body)
}
