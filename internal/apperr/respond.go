package apperr

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Respond writes the taxonomy error as JSON with its mapped status code.
// ValidationErrors carry field-level detail; unknown errors become an opaque
// 500 so internals never leak to the caller.
func Respond(c *gin.Context, err error) {
	status := HTTPStatus(err)
	if ve, ok := AsValidation(err); ok {
		c.JSON(status, gin.H{"error": "validation failed", "field": ve.Field, "reason": ve.Reason})
		return
	}
	if status == http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	if status == http.StatusNotFound {
		// Merged not-found/forbidden: the body must not reveal which.
		c.JSON(status, gin.H{"error": "not found"})
		return
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
