package handler

// error_handler.go centralises error responses and the cross-cutting
// middleware: request ids, request logging and panic recovery. Every error the
// server produces, including a recovered panic, leaves as model.ErrorResponse
// so the dialog client can parse it the same way.

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"reflect"
	"runtime/debug"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bluefermion/marketfeedback/internal/apiclient"
	"github.com/bluefermion/marketfeedback/internal/model"
)

// Error codes carried in ErrorResponse.Error.
const (
	codeValidation  = "VALIDATION_ERROR"
	codeInvalidJSON = "INVALID_JSON"
	codeBadRequest  = "BAD_REQUEST"
	codeNotFound    = "NOT_FOUND"
	codeInternal    = "INTERNAL_ERROR"
)

const requestIDKey = "request_id"

var tagNameOnce sync.Once

// useJSONFieldNames makes validator report "feedback_type" rather than "FeedbackType".
func useJSONFieldNames() {
	tagNameOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			return name
		})
	})
}

func writeError(c *gin.Context, status int, code, message string) {
	c.AbortWithStatusJSON(status, model.ErrorResponse{Error: code, Message: message})
}

// writeValidation answers 422. The top-level message repeats the first field
// message (by field name) so clients that only read "message" still show something useful.
func writeValidation(c *gin.Context, fields map[string][]string) {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	message := "Validation failed"
	if len(names) > 0 && len(fields[names[0]]) > 0 {
		message = fields[names[0]][0]
	}
	c.AbortWithStatusJSON(http.StatusUnprocessableEntity, model.ErrorResponse{
		Error:   codeValidation,
		Message: message,
		Code:    codeValidation,
		Fields:  fields,
	})
}

// writeBindError maps a ShouldBind failure onto 422 (bad values) or 400 (not JSON).
func writeBindError(c *gin.Context, err error) {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		fields := map[string][]string{}
		for _, fe := range verrs {
			fields[fe.Field()] = append(fields[fe.Field()], fieldMessage(fe))
		}
		writeValidation(c, fields)
		return
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		writeValidation(c, map[string][]string{
			typeErr.Field: {typeErr.Field + " has the wrong type"},
		})
		return
	}

	writeError(c, http.StatusBadRequest, codeInvalidJSON, "Request body must be a JSON object")
}

func fieldMessage(fe validator.FieldError) string {
	name := fe.Field()
	switch fe.Tag() {
	case "required":
		return name + " is required"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", name, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", name, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", name, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", name, fe.Param())
	default:
		return name + " is invalid"
	}
}

// RequestID propagates the client's X-Request-ID, or assigns one.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(apiclient.RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(apiclient.RequestIDHeader, id)
		c.Next()
	}
}

// RequestLogger logs one line per request at a level that follows the status.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	logger = logger.Named("http")
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path += "?" + c.Request.URL.RawQuery
		}

		c.Next()

		status := c.Writer.Status()
		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.String(requestIDKey, c.GetString(requestIDKey)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}

		switch {
		case status >= 500:
			logger.Error("request failed", fields...)
		case status >= 400:
			logger.Warn("request error", fields...)
		default:
			logger.Info("request", fields...)
		}
	}
}

// Recovery turns a panic into a 500 ErrorResponse carrying an error id that
// is also logged, so a user report can be matched to the stack trace.
func Recovery(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			errorID := generateErrorID()
			logger.Error("panic recovered",
				zap.String("error_id", errorID),
				zap.Any("error", rec),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.String(requestIDKey, c.GetString(requestIDKey)),
				zap.ByteString("stack", debug.Stack()),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, model.ErrorResponse{
				Error:   codeInternal,
				Message: "Internal server error",
				ErrorID: errorID,
			})
		}()
		c.Next()
	}
}

// NoRoute answers unknown paths in the service's error shape.
func NoRoute(c *gin.Context) {
	writeError(c, http.StatusNotFound, codeNotFound, "No route for "+c.Request.Method+" "+c.Request.URL.Path)
}

func generateErrorID() string {
	return "ERR-" + strings.ToUpper(uuid.NewString()[:8])
}
