package payment

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	minUniqueCode      = 1
	maxUniqueCode      = 99
	pendingTotalPrefix = "pending_total:"
)

// CodeAssigner picks the 1..99 disambiguation code added to a base amount.
// With Redis it reserves the resulting total for the freshness window so two
// live orders rarely share a total; without Redis (or once attempts run out)
// a colliding total is accepted and the earliest-order rule decides.
type CodeAssigner struct {
	client      *redis.Client
	ttl         time.Duration
	maxAttempts int
	intN        func(n int) int
	logger      *logrus.Logger
}

func NewCodeAssigner(client *redis.Client, ttl time.Duration, maxAttempts int, logger *logrus.Logger) *CodeAssigner {
	if maxAttempts <= 0 {
		maxAttempts = 1
	}
	return &CodeAssigner{
		client:      client,
		ttl:         ttl,
		maxAttempts: maxAttempts,
		intN:        rand.IntN,
		logger:      logger,
	}
}

func (a *CodeAssigner) randomCode() int64 {
	return int64(a.intN(maxUniqueCode-minUniqueCode+1) + minUniqueCode)
}

// Assign returns the code and the total it produces.
func (a *CodeAssigner) Assign(ctx context.Context, base int64) (int64, int64) {
	code := a.randomCode()
	if a.client == nil || a.ttl <= 0 {
		return code, base + code
	}
	for attempt := 1; attempt <= a.maxAttempts; attempt++ {
		if attempt > 1 {
			code = a.randomCode()
		}
		total := base + code
		ok, err := a.client.SetNX(ctx, fmt.Sprintf("%s%d", pendingTotalPrefix, total), 1, a.ttl).Result()
		if err != nil {
			a.logger.WithFields(logrus.Fields{
				"field": "disambiguation",
				"total": total,
			}).Warn("total reservation failed; accepting code without reservation: " + err.Error())
			return code, total
		}
		if ok {
			return code, total
		}
	}
	a.logger.WithFields(logrus.Fields{
		"field":    "disambiguation",
		"base":     base,
		"attempts": a.maxAttempts,
	}).Warn("no free total found; accepting a colliding total")
	return code, base + code
}
