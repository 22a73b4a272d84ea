// Package responses writes the JSON envelope shared by every API handler.
package responses

import "github.com/gin-gonic/gin"

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

type APIResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func Success(c *gin.Context, statusCode int, data interface{}, message string) {
	c.JSON(statusCode, APIResponse{
		Status:  StatusSuccess,
		Message: message,
		Data:    data,
	})
}

func Fail(c *gin.Context, statusCode int, err error, message string) {
	FailWithData(c, statusCode, err, message, nil)
}

// FailWithData reports an error together with the page view, so that a
// rejected form comes back with its field errors.
func FailWithData(c *gin.Context, statusCode int, err error, message string, data interface{}) {
	resp := APIResponse{
		Status:  StatusError,
		Message: message,
		Data:    data,
	}
	if err != nil {
		resp.Error = err.Error()
	}
	c.JSON(statusCode, resp)
}
