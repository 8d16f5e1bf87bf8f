// Package prometheus turns Service.MetricsSnapshot into the Prometheus text
// format. The output is rendered by hand from the shared definitions in
// internaldefs, the same table the otel exporter reads, so both exporters
// always publish the same series.
//
// feedbackd mounts [PrometheusExporter.Handler] at /metrics.
package prometheus
