package main

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/tenantgate/pkg/audit"
	"github.com/platinummonkey/tenantgate/pkg/config"
	"github.com/platinummonkey/tenantgate/pkg/observability"
	"github.com/platinummonkey/tenantgate/pkg/ratelimit"
	"github.com/platinummonkey/tenantgate/pkg/storage/postgres"
)

// auditWriteTimeout bounds one background audit write
const auditWriteTimeout = 5 * time.Second

// newAuditLogger fans events out to the application log, the audit table
// and the AMQP queue when configured. Writes happen off the request path.
func newAuditLogger(cfg *config.Config, db *sql.DB, logger *observability.Logger) (audit.Logger, error) {
	sinks := []audit.Logger{audit.NewLogSink(logger)}

	if cfg.Audit.DatabaseEnabled {
		dbLogger, err := audit.NewDBLogger(db)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, dbLogger)
	}

	if cfg.Audit.AMQPURL != "" {
		amqpLogger, err := audit.DialAMQPLogger(cfg.Audit.AMQPURL, cfg.Audit.AMQPQueue)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, amqpLogger)
		logger.WithField("queue", cfg.Audit.AMQPQueue).Info("Publishing audit events to AMQP")
	}

	return audit.NewAsyncLogger(audit.NewMultiLogger(sinks...), logger,
		cfg.Audit.Workers, cfg.Audit.QueueSize, auditWriteTimeout), nil
}

// newLimiter builds a limiter on the configured store. In-memory limiters
// are swept on the share entry sweep schedule.
func newLimiter(cfg *config.Config, client *redis.Client, scheduler *cron.Cron, logger *observability.Logger, limits ratelimit.Config, name string) (ratelimit.Limiter, error) {
	if cfg.Shares.RateLimitStore == "redis" {
		if client == nil {
			return nil, fmt.Errorf("redis client is required for the %s limiter", name)
		}
		return ratelimit.NewRedisSlidingWindow(client, limits, "tenantgate:ratelimit:"+name), nil
	}

	limiter := ratelimit.NewSlidingWindow(limits)
	_, err := scheduler.AddFunc(cfg.Shares.SweepSchedule, func() {
		defer observability.RecoverPanic(logger, name+" limiter sweep")
		before := limiter.Len()
		limiter.Sweep()
		logger.WithFields(map[string]interface{}{
			"limiter": name,
			"before":  before,
			"after":   limiter.Len(),
		}).Debug("Swept rate limiter")
	})
	if err != nil {
		return nil, fmt.Errorf("invalid sweep schedule %q: %w", cfg.Shares.SweepSchedule, err)
	}
	return limiter, nil
}

// newHealthChecker checks the primary directly and adds the replica set when
// read replicas are configured
func newHealthChecker(conns *postgres.ConnectionManager, redisClient *redis.Client) *observability.HealthChecker {
	checker := observability.NewHealthChecker(conns.Primary(), redisClient, version)
	if conns.ReplicaCount() > 0 {
		checker.WithReplicaCheck(conns.HealthCheck)
	}
	return checker
}
