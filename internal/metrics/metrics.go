package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/momentics/jfetmeter/pkg/frame"
)

// NewRegistry создает отдельный Registry со стандартными сборщиками.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler возвращает HTTP-обработчик метрик.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// MeterMetrics считает кадры и измерения. Реализует frame.Observer и meter.Recorder.
type MeterMetrics struct {
	FramesSent          prometheus.Counter
	FramesReceived      prometheus.Counter
	BytesSent           prometheus.Counter
	FramesDiscarded     *prometheus.CounterVec // labels: reason=short|checksum
	MeasurementDuration *prometheus.HistogramVec
	Measurements        *prometheus.CounterVec // labels: outcome
}

// NewMeterMetrics регистрирует и возвращает метрики.
func NewMeterMetrics(reg prometheus.Registerer) *MeterMetrics {
	m := &MeterMetrics{
		FramesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jfetmeter_frames_sent_total",
			Help: "Frames sent to the meter.",
		}),
		FramesReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jfetmeter_frames_received_total",
			Help: "Checksum-verified frames received from the meter.",
		}),
		BytesSent: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "jfetmeter_bytes_sent_total",
			Help: "Bytes written to the serial port.",
		}),
		FramesDiscarded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jfetmeter_frames_discarded_total",
			Help: "Malformed frames skipped by the receiver.",
		}, []string{"reason"}),
		MeasurementDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jfetmeter_measurement_duration_seconds",
			Help:    "Duration of a full version/sweep/fit run.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
		}, []string{"outcome"}),
		Measurements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jfetmeter_measurements_total",
			Help: "Measurement runs by outcome.",
		}, []string{"outcome"}),
	}
	reg.MustRegister(m.FramesSent, m.FramesReceived, m.BytesSent, m.FramesDiscarded, m.MeasurementDuration, m.Measurements)
	return m
}

func (m *MeterMetrics) FrameSent(size int) {
	m.FramesSent.Inc()
	m.BytesSent.Add(float64(size))
}

func (m *MeterMetrics) FrameReceived(int) { m.FramesReceived.Inc() }

func (m *MeterMetrics) FrameDiscarded(reason error) {
	label := "other"
	switch {
	case errors.Is(reason, frame.ErrShortPacket):
		label = "short"
	case errors.Is(reason, frame.ErrBadChecksum):
		label = "checksum"
	}
	m.FramesDiscarded.WithLabelValues(label).Inc()
}

func (m *MeterMetrics) ObserveMeasurement(outcome string, d time.Duration) {
	m.Measurements.WithLabelValues(outcome).Inc()
	m.MeasurementDuration.WithLabelValues(outcome).Observe(d.Seconds())
}
