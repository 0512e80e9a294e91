package reconcile

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/qris_backend/appctx"
	"github.com/mmdatafocus/qris_backend/config"
	"github.com/mmdatafocus/qris_backend/middlewares"
	"github.com/mmdatafocus/qris_backend/notification"
	"github.com/sirupsen/logrus"
)

type notificationRequest struct {
	notification.Event
	Secret string `json:"secret"`
}

// NotificationHandler accepts notifications relayed by the phone automation
// app. The secret may come in the body or the X-Secret-Key header.
func NotificationHandler(engine *Engine, verifier *middlewares.SecretVerifier, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req notificationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid body"})
			return
		}

		secret := c.GetHeader(middlewares.SecretHeader)
		if secret == "" {
			secret = req.Secret
		}
		if !verifier.Verify(secret) {
			logger.WithFields(logrus.Fields{
				"field":          "NotificationHandler",
				"package_name":   req.PackageName,
				"correlation_id": appctx.CorrelationId(c.Request.Context()),
			}).Warn("rejected notification with invalid secret")
			c.JSON(http.StatusUnauthorized, gin.H{"status": "error", "error": "invalid secret"})
			return
		}

		res, err := engine.HandleEvent(c.Request.Context(), req.Event)
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "server error"})
			return
		}
		c.JSON(http.StatusOK, matchResponse(req.Event, res))
	}
}

func matchResponse(ev notification.Event, res MatchResult) gin.H {
	body := gin.H{
		"status": "success",
		"match":  res.Matched,
		"reason": res.Reason,
		"source": notification.ClassifySource(ev.PackageName, ev.FullText()).Label,
	}
	if res.Amount > 0 {
		body["amount"] = res.Amount
	}
	if res.Matched && res.Order != nil {
		body["order_id"] = res.Order.OrderId
	}
	return body
}

// PubSubNotificationHandler consumes the same notifications from a Pub/Sub
// push subscription. Malformed messages are acked; store failures return 500
// so Pub/Sub redelivers.
func PubSubNotificationHandler(engine *Engine, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			config.LogError(logger, "reconcile", "PubSubNotificationHandler", "io.ReadAll", nil, err)
			c.Status(http.StatusNoContent)
			return
		}

		var ev notification.Event
		envelope, err := config.DecodePushEnvelope(body, &ev)
		if err != nil {
			config.LogError(logger, "reconcile", "PubSubNotificationHandler", "DecodePushEnvelope", string(body), err)
			c.Status(http.StatusNoContent)
			return
		}

		ctx := c.Request.Context()
		if envelope.Message.ID != "" {
			ctx = appctx.SetCorrelationId(ctx, envelope.Message.ID)
		}
		res, err := engine.HandleEvent(ctx, ev)
		if err != nil {
			logger.WithFields(logrus.Fields{
				"field":          "PubSubNotificationHandler",
				"message_id":     envelope.Message.ID,
				"correlation_id": appctx.CorrelationId(ctx),
			}).Error("pubsub notification processing failed: " + err.Error())
			if errors.Is(err, ErrStoreUnavailable) {
				c.Status(http.StatusInternalServerError)
				return
			}
			c.Status(http.StatusNoContent)
			return
		}

		logger.WithFields(logrus.Fields{
			"field":      "PubSubNotificationHandler",
			"message_id": envelope.Message.ID,
			"match":      res.Matched,
			"reason":     res.Reason,
		}).Info("pubsub notification processed")
		c.Status(http.StatusNoContent)
	}
}
