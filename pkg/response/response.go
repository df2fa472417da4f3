package response

import (
	"net/http"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/students-api/pkg/errors"
)

// ValidationBody is returned for payloads that fail field validation.
type ValidationBody struct {
	Errors map[string][]string `json:"errors"`
}

// ErrorBody carries a single human readable error message.
type ErrorBody struct {
	Error string `json:"error"`
}

// JSON sends data as the bare response body.
func JSON(c *gin.Context, status int, data interface{}) {
	noStore(c)
	c.JSON(status, data)
}

// Created responds with HTTP 201 Created.
func Created(c *gin.Context, data interface{}) {
	JSON(c, http.StatusCreated, data)
}

// Attachment streams a rendered file to the client.
func Attachment(c *gin.Context, filename, contentType string, data []byte) {
	noStore(c)
	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, contentType, data)
}

// Error converts err into the wire contract: field errors under "errors",
// not-found as an empty body and everything else under "error".
func Error(c *gin.Context, err error) {
	appErr := appErrors.FromError(err)
	noStore(c)
	switch {
	case appErr.Status == http.StatusNotFound:
		c.AbortWithStatus(http.StatusNotFound)
	case len(appErr.Fields) > 0:
		c.AbortWithStatusJSON(appErr.Status, ValidationBody{Errors: appErr.Fields})
	case appErr.Status >= http.StatusInternalServerError:
		c.AbortWithStatusJSON(appErr.Status, ErrorBody{Error: appErrors.ErrInternal.Message})
	default:
		c.AbortWithStatusJSON(appErr.Status, ErrorBody{Error: appErr.Message})
	}
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
	c.Writer.WriteHeaderNow()
}

func noStore(c *gin.Context) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
}
