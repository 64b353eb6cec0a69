package prometheus

import (
	"bytes"
	"fmt"
	"net/http"
	"strings"

	"github.com/bikebill/authcore"
	"github.com/bikebill/authcore/metrics/export/internaldefs"
)

const contentType = "text/plain; version=0.0.4; charset=utf-8"

type metricsSource interface {
	MetricsSnapshot() authcore.MetricsSnapshot
	AuditDropped() uint64
	RateLimiterDegraded() bool
}

// PrometheusExporter renders Engine metrics in Prometheus text exposition format.
type PrometheusExporter struct {
	source metricsSource
}

// NewPrometheusExporter reads from engine on every scrape.
func NewPrometheusExporter(engine *authcore.Engine) *PrometheusExporter {
	return &PrometheusExporter{source: engine}
}

// NewPrometheusExporterFromSource is NewPrometheusExporter for anything that
// can produce a snapshot.
func NewPrometheusExporterFromSource(source metricsSource) *PrometheusExporter {
	return &PrometheusExporter{source: source}
}

// Handler serves the text exposition format.
func (p *PrometheusExporter) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte(p.Render()))
	})
}

// Render returns the current metrics. It is empty when metrics are disabled
// and nothing was dropped.
func (p *PrometheusExporter) Render() string {
	if p == nil || p.source == nil {
		return ""
	}

	snap := p.source.MetricsSnapshot()
	dropped := p.source.AuditDropped()
	if len(snap.Counters) == 0 && len(snap.Histograms) == 0 && dropped == 0 {
		return ""
	}

	var out textWriter
	for _, def := range internaldefs.CounterDefs {
		out.family(def.Name, def.Help, "counter")
		out.sample(def.Name, "", snap.Counters[def.ID])
	}
	for _, def := range internaldefs.HistogramDefs {
		out.histogram(def.Name, def.Help, internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(snap.Histograms[def.ID])))
	}

	out.family("authcore_audit_dropped_total", "Audit events dropped on a full dispatcher buffer.", "counter")
	out.sample("authcore_audit_dropped_total", "", dropped)

	var degraded uint64
	if p.source.RateLimiterDegraded() {
		degraded = 1
	}
	out.family("authcore_rate_limiter_degraded", "1 while local rate-limit buckets are serving.", "gauge")
	out.sample("authcore_rate_limiter_degraded", "", degraded)

	return out.String()
}

type textWriter struct {
	bytes.Buffer
}

func (w *textWriter) family(name, help, kind string) {
	help = strings.NewReplacer(`\`, `\\`, "\n", `\n`).Replace(help)
	fmt.Fprintf(w, "# HELP %s %s\n# TYPE %s %s\n", name, help, name, kind)
}

func (w *textWriter) sample(name, labels string, v uint64) {
	if labels != "" {
		fmt.Fprintf(w, "%s{%s} %d\n", name, labels, v)
		return
	}
	fmt.Fprintf(w, "%s %d\n", name, v)
}

func (w *textWriter) histogram(name, help string, cumulative [8]uint64) {
	w.family(name, help, "histogram")
	for i, le := range internaldefs.HistogramBounds {
		w.sample(name+"_bucket", `le="`+le+`"`, cumulative[i])
	}
	w.sample(name+"_count", "", cumulative[len(cumulative)-1])
	// Snapshots carry bucket counts only.
	w.sample(name+"_sum", "", 0)
}
