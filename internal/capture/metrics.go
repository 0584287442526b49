package capture

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var capturesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "kioskbox_captures_total",
	Help: "Capture attempts by path (devtools, desktop) and result (ok, failed).",
}, []string{"path", "result"})
