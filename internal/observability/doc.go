// Package observability provides logging, metrics, and tracing for
// the proxy rotation manager.
//
// This package wraps zap behind a small Logger interface, exposes a
// private Prometheus registry with the rotation counters, and wires
// an optional OTLP trace exporter.
//
// # Logging
//
// Create a logger and make it the process-wide default:
//
//	logger, err := observability.NewLogger(observability.LogConfig{
//	    Level:  "info",
//	    Format: "json",
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	observability.SetGlobalLogger(logger)
//
// # Metrics
//
// Metrics are registered on a private registry so tests never collide
// with the default one:
//
//	metrics := observability.NewMetrics("gwrotor")
//	http.Handle("/metrics", metrics.Handler())
package observability
