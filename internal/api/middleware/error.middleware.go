package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"github.com/authware/rbac-core/pkg/logger"
)

// Envelope is the error body shared by every non-2xx response. 403
// denials additionally carry the violation kind.
type Envelope struct {
	Error      string           `json:"error"`
	Violation  string           `json:"violation,omitempty"`
	Detail     string           `json:"detail"`
	StatusCode int              `json:"status_code"`
	Path       string           `json:"path"`
	Exception  *ExceptionDetail `json:"exception,omitempty"`
}

// ExceptionDetail is attached to 500 envelopes in debug mode only.
type ExceptionDetail struct {
	Type    string `json:"type"`
	Message string `json:"message"`
	Stack   string `json:"stack,omitempty"`
}

func statusText(status int) string {
	switch status {
	case http.StatusForbidden:
		return "Unauthorized Access"
	case http.StatusNotFound:
		return "Not Found"
	case http.StatusBadRequest:
		return "Bad Request"
	case http.StatusInternalServerError:
		return "Internal Server Error"
	default:
		return http.StatusText(status)
	}
}

// WriteError sends a non-403 envelope and aborts the request.
func WriteError(c *gin.Context, status int, detail string) {
	c.AbortWithStatusJSON(status, Envelope{
		Error:      statusText(status),
		Detail:     detail,
		StatusCode: status,
		Path:       c.Request.URL.Path,
	})
}

// NotFoundHandler is installed as the router's NoRoute handler so unknown
// paths get the envelope shape instead of gin's default body.
func NotFoundHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		WriteError(c, http.StatusNotFound,
			fmt.Sprintf("The requested path '%s' was not found.", c.Request.URL.Path))
	}
}

// Recovery converts panics into 500 envelopes. In debug mode the envelope
// carries the panic value and stack; in production only the path.
func Recovery(log logger.Logger, debugMode bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				stack := string(debug.Stack())
				log.Error("Panic recovered",
					"error", fmt.Sprintf("%v", r),
					"method", c.Request.Method,
					"path", c.Request.URL.Path,
					"request_id", c.GetString(RequestIDKey),
					"stack", stack,
				)

				env := Envelope{
					Error:      statusText(http.StatusInternalServerError),
					Detail:     "An unexpected error occurred.",
					StatusCode: http.StatusInternalServerError,
					Path:       c.Request.URL.Path,
				}
				if debugMode {
					env.Exception = &ExceptionDetail{
						Type:    fmt.Sprintf("%T", r),
						Message: fmt.Sprintf("%v", r),
						Stack:   stack,
					}
				}
				c.AbortWithStatusJSON(http.StatusInternalServerError, env)
			}
		}()
		c.Next()
	}
}

// ErrorHandler is the top-level translator for handler errors pushed via
// c.Error. The last error wins; its status comes from any status already
// set on the writer, defaulting to 500.
func ErrorHandler(log logger.Logger, debugMode bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		status := c.Writer.Status()
		if status < 400 {
			status = http.StatusInternalServerError
		}

		env := Envelope{
			Error:      statusText(status),
			Detail:     err.Error(),
			StatusCode: status,
			Path:       c.Request.URL.Path,
		}
		if status >= 500 {
			log.Error("Request failed",
				"error", err,
				"method", c.Request.Method,
				"path", c.Request.URL.Path,
				"request_id", c.GetString(RequestIDKey),
			)
			if debugMode {
				env.Exception = &ExceptionDetail{
					Type:    fmt.Sprintf("%T", err),
					Message: err.Error(),
				}
			} else {
				env.Detail = "An unexpected error occurred."
			}
		}
		c.JSON(status, env)
	}
}
