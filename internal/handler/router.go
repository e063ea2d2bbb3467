package handler

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// NewRouter builds the engine with the standard middleware chain. The logger
// sits outside Recovery so recovered panics are logged with their 500 status.
func NewRouter(h *FeedbackHandler, logger *zap.Logger) *gin.Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := gin.New()
	r.Use(RequestID(), RequestLogger(logger), Recovery(logger))
	r.NoRoute(NoRoute)
	h.Register(r)
	return r
}
