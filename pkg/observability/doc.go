// Package observability provides structured logging, Prometheus metrics,
// OpenTelemetry tracing, health probes and graceful shutdown.
//
// # Structured Logging
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.WithField("tenant_id", tenantID).Info("subscription updated")
//
// Request-scoped logging picks up the request, user and tenant identifiers
// placed in the context by the HTTP middleware:
//
//	observability.FromContext(ctx).WithError(err).Error("redeem failed")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordGateDecision("rbac", "forbidden")
//
// A nil *Metrics records nothing.
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	router.HandleFunc("/readyz", checker.Readiness)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, cfg, logger)
//	ctx, span := observability.StartSpan(ctx, "subscription.redeem")
//	defer func() { observability.EndSpan(span, err) }()
package observability
