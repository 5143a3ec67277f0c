package utils

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Response standard response structure
type Response struct {
	Code      ResponseCode `json:"code"`
	Message   string       `json:"message"`
	Data      interface{}  `json:"data,omitempty"`
	Timestamp int64        `json:"timestamp"`
}

// SuccessResponse returns success response
func SuccessResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Response{
		Code:      CodeSuccess,
		Message:   "success",
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// Error writes an error response for a business code
func Error(c *gin.Context, code ResponseCode, message string) {
	c.JSON(code.HTTPStatus(), Response{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// ErrorFrom writes the response matching err
func ErrorFrom(c *gin.Context, err error) {
	Error(c, GetErrorCode(err), GetErrorMessage(err))
}
