package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/abhishek00112233/LMS-Backend/internal/dto"
	"github.com/abhishek00112233/LMS-Backend/internal/logger"
)

// RateLimitMiddleware limits requests per client IP. Defaults to 10 per minute.
func RateLimitMiddleware(limit int64, period time.Duration) gin.HandlerFunc {
	if limit <= 0 {
		limit = 10
	}
	if period <= 0 {
		period = time.Minute
	}

	instance := limiter.New(memory.NewStore(), limiter.Rate{
		Period: period,
		Limit:  limit,
	})

	return func(c *gin.Context) {
		key := c.ClientIP()
		lctx, err := instance.Get(c, key)
		if err != nil {
			logger.Log.WithError(err).Error("rate limit: store failure")
			c.AbortWithStatus(http.StatusInternalServerError)
			return
		}

		c.Header("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			logger.Log.WithField("client_ip", key).Warn("rate limit: reached")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, dto.MessageResponse{
				Message: "Too many requests, please try again later",
			})
			return
		}

		c.Next()
	}
}
