package metrics

import (
	"fmt"
	"net/http"
	"sort"
	"strings"
)

const (
	eventsMetric   = "phoenix_signal_relay_events_total"
	sessionsMetric = "phoenix_signal_relay_active_sessions"
)

var labelEscaper = strings.NewReplacer("\\", "\\\\", "\"", "\\\"", "\n", "\\n")

// PrometheusHandler exposes counters in Prometheus' text exposition format
// as a single counter family labelled by event. If activeSessions is non-nil
// its value is exported as a gauge.
func PrometheusHandler(m *Metrics, activeSessions func() int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m == nil {
			http.Error(w, "metrics not configured", http.StatusInternalServerError)
			return
		}

		snap := m.Snapshot()
		keys := make([]string, 0, len(snap))
		for k := range snap {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
		_, _ = fmt.Fprintf(w, "# HELP %s Relay event counters.\n", eventsMetric)
		_, _ = fmt.Fprintf(w, "# TYPE %s counter\n", eventsMetric)
		for _, k := range keys {
			_, _ = fmt.Fprintf(w, "%s{event=\"%s\"} %d\n", eventsMetric, labelEscaper.Replace(k), snap[k])
		}

		if activeSessions != nil {
			_, _ = fmt.Fprintf(w, "# HELP %s Sessions currently in the registry.\n", sessionsMetric)
			_, _ = fmt.Fprintf(w, "# TYPE %s gauge\n", sessionsMetric)
			_, _ = fmt.Fprintf(w, "%s %d\n", sessionsMetric, activeSessions())
		}
	})
}
