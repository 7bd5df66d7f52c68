// SPDX-License-Identifier: GPL-3.0-or-later

package dnsstub

import (
	"io"

	"github.com/VictoriaMetrics/metrics"
)

// handlerMetrics are the metrics of a single [*Handler].
type handlerMetrics struct {
	set *metrics.Set

	queries    *metrics.Counter
	forwarded  *metrics.Counter
	responses  *metrics.Counter
	malformed  *metrics.Counter
	unmatched  *metrics.Counter
	dropped    *metrics.Counter
	sendErrors *metrics.Counter

	// duration measures the time from a query to its reassembled response.
	duration *metrics.Histogram
}

func newHandlerMetrics(pending func() int) *handlerMetrics {
	set := metrics.NewSet()
	m := &handlerMetrics{
		set:        set,
		queries:    set.NewCounter("dnsstub_queries_total"),
		forwarded:  set.NewCounter("dnsstub_forwarded_total"),
		responses:  set.NewCounter("dnsstub_responses_total"),
		malformed:  set.NewCounter("dnsstub_malformed_total"),
		unmatched:  set.NewCounter("dnsstub_unmatched_total"),
		dropped:    set.NewCounter("dnsstub_pending_dropped_total"),
		sendErrors: set.NewCounter("dnsstub_send_errors_total"),
		duration:   set.NewHistogram("dnsstub_resolution_duration_seconds"),
	}
	set.NewGauge("dnsstub_pending_queries", func() float64 {
		return float64(pending())
	})
	return m
}

// WritePrometheus writes the handler metrics in Prometheus text format.
func (h *Handler) WritePrometheus(w io.Writer) {
	h.metrics.set.WritePrometheus(w)
}
