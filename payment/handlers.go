package payment

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

func CheckoutHandler(svc *Service, logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CheckoutRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "invalid body"})
			return
		}

		res, err := svc.Checkout(c.Request.Context(), req)
		if err != nil {
			var ve *ValidationError
			if errors.As(err, &ve) {
				logger.WithFields(logrus.Fields{
					"field":  "CheckoutHandler",
					"reason": ve.Message,
				}).Info("checkout rejected")
				body := gin.H{"status": "error", "error": ve.Message}
				if len(ve.Fields) > 0 {
					body["fields"] = ve.Fields
				}
				c.JSON(http.StatusBadRequest, body)
				return
			}
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "server error"})
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"status":       "success",
			"order_id":     res.OrderId,
			"total_pay":    res.TotalPay,
			"unique_code":  res.UniqueCode,
			"method":       res.Method,
			"qr_image":     res.QRImage,
			"qr_string":    res.QRString,
			"payment_info": res.PaymentInfo,
		})
	}
}

func StatusHandler(svc *Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		orderId := strings.TrimSpace(c.Query("order_id"))
		if orderId == "" {
			c.JSON(http.StatusBadRequest, gin.H{"status": "error", "error": "order_id is required"})
			return
		}

		status, err := svc.Status(c.Request.Context(), orderId)
		if errors.Is(err, ErrOrderNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"status": "NOT_FOUND"})
			return
		}
		if err != nil {
			_ = c.Error(err)
			c.JSON(http.StatusInternalServerError, gin.H{"status": "error", "error": "server error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": status})
	}
}
