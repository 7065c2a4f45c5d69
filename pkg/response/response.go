package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Body is the standard API response envelope.
// Code tells apart failures that share a status.
type Body struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"`
}

// Error codes callers branch on.
const (
	CodeNoMatches           = "no_matches"
	CodeUnresolvedLocations = "unresolved_locations"
)

func fail(c *gin.Context, status int, code, err string, data interface{}) {
	c.JSON(status, Body{Error: err, Code: code, Data: data})
}

// OK sends a 200 JSON response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Body{Success: true, Data: data})
}

// Created sends a 201 JSON response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Body{Success: true, Data: data})
}

func BadRequest(c *gin.Context, err string)   { fail(c, http.StatusBadRequest, "", err, nil) }
func Unauthorized(c *gin.Context, err string) { fail(c, http.StatusUnauthorized, "", err, nil) }
func Forbidden(c *gin.Context, err string)    { fail(c, http.StatusForbidden, "", err, nil) }
func NotFound(c *gin.Context, err string)     { fail(c, http.StatusNotFound, "", err, nil) }
func Conflict(c *gin.Context, err string)     { fail(c, http.StatusConflict, "", err, nil) }
func Internal(c *gin.Context, err string)     { fail(c, http.StatusInternalServerError, "", err, nil) }

// ServiceUnavailable sends 503 when a downstream transport cannot be reached.
func ServiceUnavailable(c *gin.Context, err string) {
	fail(c, http.StatusServiceUnavailable, "", err, nil)
}

// UnprocessableEntity sends 422 with a machine-readable code. Used when the
// request is valid but nothing can be done with it, e.g. no venue matches.
func UnprocessableEntity(c *gin.Context, code, err string) {
	fail(c, http.StatusUnprocessableEntity, code, err, nil)
}

// ConflictWithData sends 409 with a code and the records that block the
// operation.
func ConflictWithData(c *gin.Context, code, err string, data interface{}) {
	fail(c, http.StatusConflict, code, err, data)
}
