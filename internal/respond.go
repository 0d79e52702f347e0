package internal

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const mailTimeout = 15 * time.Second

// ServerError logs err and answers with a generic 500
func ServerError(c *gin.Context, msg string, err error) {
	requestID := c.GetString("requestID")

	c.JSON(http.StatusInternalServerError, gin.H{
		"error":     "Internal server error",
		"requestID": requestID,
	})

	zap.L().Error(msg, zap.Error(err), zap.String("requestID", requestID))
}

// MailContext bounds how long a handler waits on the mail queue
func MailContext(c *gin.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request.Context(), mailTimeout)
}
