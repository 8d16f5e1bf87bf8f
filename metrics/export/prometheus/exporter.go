package prometheus

import (
	"net/http"
	"strconv"
	"strings"

	feedback "github.com/Quisharoo/manager-feedback-questions-sub000"
	"github.com/Quisharoo/manager-feedback-questions-sub000/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

type metricsSource interface {
	MetricsSnapshot() feedback.MetricsSnapshot
	AuditDropped() uint64
}

// backendNamer is implemented by sources that know their storage backend.
type backendNamer interface {
	Backend() string
}

// PrometheusExporter serves a snapshot of the session counters and the update
// latency histogram as a Prometheus scrape target. Every series carries a
// backend label when the source reports one.
type PrometheusExporter struct {
	source metricsSource
	labels string
}

// NewPrometheusExporter reads from svc.
func NewPrometheusExporter(svc *feedback.Service) *PrometheusExporter {
	return NewPrometheusExporterFromSource(svc)
}

// NewPrometheusExporterFromSource reads from source; tests pass fakes here.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	p := &PrometheusExporter{source: source}
	if named, ok := source.(backendNamer); ok && named.Backend() != "" {
		p.labels = `backend="` + escapeLabel(named.Backend()) + `"`
	}
	return p
}

// Handler is the /metrics endpoint.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render formats one snapshot. Nothing is written while metrics are off.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snapshot := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 && dropped == 0 {
		return ""
	}

	w := textWriter{labels: p.labels}
	w.b.Grow(8192)

	for _, def := range internaldefs.CounterDefs {
		w.header(def.Name, def.Help, "counter")
		w.sample(def.Name, "", snapshot.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snapshot.Histograms[def.ID]))
		w.histogram(def.Name, def.Help, cumulative)
	}

	w.header("feedback_audit_dropped_total", "Audit events dropped because the dispatcher buffer was full.", "counter")
	w.sample("feedback_audit_dropped_total", "", dropped)

	return w.b.String()
}

// textWriter appends exposition lines. labels is the constant label set
// shared by every sample, without braces.
type textWriter struct {
	b      strings.Builder
	labels string
}

func (w *textWriter) header(name, help, kind string) {
	w.b.WriteString("# HELP " + name + " " + escapeHelp(help) + "\n")
	w.b.WriteString("# TYPE " + name + " " + kind + "\n")
}

// sample writes one line; extra is an additional label pair such as le="1".
func (w *textWriter) sample(name, extra string, value uint64) {
	w.b.WriteString(name)
	switch {
	case w.labels != "" && extra != "":
		w.b.WriteString("{" + w.labels + "," + extra + "}")
	case w.labels != "":
		w.b.WriteString("{" + w.labels + "}")
	case extra != "":
		w.b.WriteString("{" + extra + "}")
	}
	w.b.WriteByte(' ')
	w.b.WriteString(strconv.FormatUint(value, 10))
	w.b.WriteByte('\n')
}

func (w *textWriter) histogram(name, help string, cumulative [8]uint64) {
	w.header(name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		w.sample(name+"_bucket", `le="`+le+`"`, cumulative[i])
	}
	w.sample(name+"_count", "", cumulative[len(cumulative)-1])
	// Only bucket counts are kept, so the sum is unknown.
	w.sample(name+"_sum", "", 0)
}

func escapeHelp(help string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
}

func escapeLabel(value string) string {
	return strings.NewReplacer(`\`, `\\`, "\n", `\n`, `"`, `\"`).Replace(value)
}
