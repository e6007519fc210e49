package goreactor

import "github.com/prometheus/client_golang/prometheus"

// reactorMetrics mirrors the class-level introspection operations of
// spec.md §6 (WatchedSockets, ToClose, HaveEpoll) as Prometheus
// instruments, plus queue-pressure and close-reason counters no single
// accessor exposes. Registration is skipped entirely when the caller
// passes a nil Registerer in Options, so the core has no mandatory
// metrics dependency at runtime even though client_golang is always
// linked in.
type reactorMetrics struct {
	watchedSockets    prometheus.Gauge
	deferredCloseSize prometheus.Gauge
	backendIsEpoll    prometheus.Gauge
	writeQueueBytes   prometheus.Gauge
	closedTotal       *prometheus.CounterVec
}

func newReactorMetrics(reg prometheus.Registerer) *reactorMetrics {
	if reg == nil {
		return nil
	}
	m := &reactorMetrics{
		watchedSockets: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reactor_watched_sockets",
			Help: "Number of file descriptors currently registered with the reactor.",
		}),
		deferredCloseSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reactor_deferred_close_depth",
			Help: "Number of sockets awaiting the end-of-batch deferred close.",
		}),
		backendIsEpoll: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reactor_backend_is_epoll",
			Help: "1 if the epoll backend is in use, 0 if the portable poll backend is in use.",
		}),
		writeQueueBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "reactor_write_queue_bytes",
			Help: "Sum of write_buf_size across all live connections.",
		}),
		closedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "reactor_connections_closed_total",
			Help: "Connections closed, labeled by close reason.",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.watchedSockets, m.deferredCloseSize, m.backendIsEpoll, m.writeQueueBytes, m.closedTotal)
	return m
}

func (m *reactorMetrics) addQueueBytes(delta int) {
	if m == nil {
		return
	}
	m.writeQueueBytes.Add(float64(delta))
}

func (m *reactorMetrics) observeClose(reason string) {
	if m == nil {
		return
	}
	m.closedTotal.WithLabelValues(reason).Inc()
}

func (m *reactorMetrics) setWatched(n int) {
	if m == nil {
		return
	}
	m.watchedSockets.Set(float64(n))
}

func (m *reactorMetrics) setDeferredClose(n int) {
	if m == nil {
		return
	}
	m.deferredCloseSize.Set(float64(n))
}

func (m *reactorMetrics) setBackend(isEpoll bool) {
	if m == nil {
		return
	}
	if isEpoll {
		m.backendIsEpoll.Set(1)
	} else {
		m.backendIsEpoll.Set(0)
	}
}
