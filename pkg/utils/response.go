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

// CreatedResponse returns 201 with the created resource
func CreatedResponse(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Response{
		Code:      CodeSuccess,
		Message:   "created",
		Data:      data,
		Timestamp: time.Now().Unix(),
	})
}

// Error writes an error response with an explicit code
func Error(c *gin.Context, code ResponseCode, message string) {
	status := http.StatusInternalServerError
	switch code {
	case CodeInvalidParam:
		status = http.StatusBadRequest
	case CodeRateLimit:
		status = http.StatusTooManyRequests
	}
	c.AbortWithStatusJSON(status, Response{
		Code:      code,
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// ErrorFrom derives status and code from a domain error
func ErrorFrom(c *gin.Context, err error) {
	message := err.Error()
	if GetErrorCode(err) == CodeInternalError {
		message = ErrInternalError.Message
	}
	c.AbortWithStatusJSON(HTTPStatus(err), Response{
		Code:      GetErrorCode(err),
		Message:   message,
		Timestamp: time.Now().Unix(),
	})
}

// PageResponse page response structure
type PageResponse struct {
	List  interface{} `json:"list"`
	Total int64       `json:"total"`
	Page  int         `json:"page"`
	Size  int         `json:"size"`
}

// SuccessPageResponse returns success page response
func SuccessPageResponse(c *gin.Context, list interface{}, total int64, page, size int) {
	SuccessResponse(c, PageResponse{
		List:  list,
		Total: total,
		Page:  page,
		Size:  size,
	})
}
