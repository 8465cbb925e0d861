package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ErrorBody is the API error envelope. Error is a stable machine-readable
// code (e.g. "invalid_credentials"); Details carries field-level issues for
// validation failures only.
type ErrorBody struct {
	Error   string      `json:"error"`
	Details interface{} `json:"details,omitempty"`
}

// OK sends a 200 JSON response with the payload as-is.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 JSON response with the payload as-is.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// NoContent sends 204.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// InvalidBody sends 400 with code invalid_body and validation details.
func InvalidBody(c *gin.Context, details interface{}) {
	c.JSON(http.StatusBadRequest, ErrorBody{Error: "invalid_body", Details: details})
}

// BadRequest sends 400 with an error code.
func BadRequest(c *gin.Context, code string) {
	c.JSON(http.StatusBadRequest, ErrorBody{Error: code})
}

// Unauthorized sends 401 with an error code.
func Unauthorized(c *gin.Context, code string) {
	c.JSON(http.StatusUnauthorized, ErrorBody{Error: code})
}

// Forbidden sends 403 with an error code.
func Forbidden(c *gin.Context, code string) {
	c.JSON(http.StatusForbidden, ErrorBody{Error: code})
}

// NotFound sends 404 with an error code.
func NotFound(c *gin.Context, code string) {
	c.JSON(http.StatusNotFound, ErrorBody{Error: code})
}

// Conflict sends 409 with an error code.
func Conflict(c *gin.Context, code string) {
	c.JSON(http.StatusConflict, ErrorBody{Error: code})
}

// Internal sends 500 with an error code.
func Internal(c *gin.Context, code string) {
	c.JSON(http.StatusInternalServerError, ErrorBody{Error: code})
}
