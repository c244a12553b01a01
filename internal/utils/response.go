package utils

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// ResponseData is the JSON envelope every /api/v1 endpoint answers with.
type ResponseData struct {
	Status    int    `json:"status"`
	Message   string `json:"message"`
	Data      any    `json:"data,omitempty"`
	Error     string `json:"error,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

// write stamps the request id set by the request logger and sends body.
func write(c *gin.Context, body ResponseData) {
	body.RequestID = c.GetString("requestID")
	c.JSON(body.Status, body)
}

// Success answers 200 with data.
func Success(c *gin.Context, message string, data any) {
	write(c, ResponseData{Status: http.StatusOK, Message: message, Data: data})
}

// Created answers 201 with the new resource.
func Created(c *gin.Context, message string, data any) {
	write(c, ResponseData{Status: http.StatusCreated, Message: message, Data: data})
}

// Error answers statusCode; errorMessage is what the portal shows the user.
func Error(c *gin.Context, statusCode int, errorMessage string) {
	write(c, ResponseData{Status: statusCode, Message: "An error occurred", Error: errorMessage})
}

func BadRequest(c *gin.Context, errorMessage string) {
	Error(c, http.StatusBadRequest, errorMessage)
}

func Unauthorized(c *gin.Context, errorMessage string) {
	Error(c, http.StatusUnauthorized, errorMessage)
}

func Forbidden(c *gin.Context, errorMessage string) {
	Error(c, http.StatusForbidden, errorMessage)
}

func InternalServerError(c *gin.Context, errorMessage string) {
	Error(c, http.StatusInternalServerError, errorMessage)
}
