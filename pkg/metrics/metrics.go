// Package metrics exposes Prometheus instrumentation for interpreter
// sessions. All recording helpers are nil-safe so instrumentation stays
// optional.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the interpreter pipeline.
type Metrics struct {
	// Outbound capture metrics
	FramesSent    prometheus.Counter
	FramesDropped prometheus.Counter
	SendErrors    prometheus.Counter

	// Inbound playback metrics
	ChunksScheduled prometheus.Counter
	DecodeErrors    prometheus.Counter
	Interruptions   prometheus.Counter
	ActiveHandles   prometheus.Gauge

	// Session metrics
	SessionsStarted prometheus.Counter
	SessionErrors   prometheus.Counter
	TurnsCompleted  prometheus.Counter
	SessionStatus   prometheus.Gauge
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return &Metrics{
		FramesSent: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lingopipe_frames_sent_total",
			Help: "Total number of captured audio frames sent to the remote session",
		}),
		FramesDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lingopipe_frames_dropped_total",
			Help: "Total number of captured frames dropped before the session was listening",
		}),
		SendErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lingopipe_send_errors_total",
			Help: "Total number of failed outbound frame sends",
		}),
		ChunksScheduled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lingopipe_audio_chunks_scheduled_total",
			Help: "Total number of inbound audio chunks scheduled for playback",
		}),
		DecodeErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lingopipe_decode_errors_total",
			Help: "Total number of malformed inbound audio payloads dropped",
		}),
		Interruptions: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lingopipe_interruptions_total",
			Help: "Total number of remote interruption signals (barge-in flushes)",
		}),
		ActiveHandles: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lingopipe_active_playback_handles",
			Help: "Current number of scheduled or playing audio buffers",
		}),
		SessionsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lingopipe_sessions_started_total",
			Help: "Total number of sessions started",
		}),
		SessionErrors: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lingopipe_session_errors_total",
			Help: "Total number of sessions ended by an error",
		}),
		TurnsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "lingopipe_turns_completed_total",
			Help: "Total number of completed conversational turns",
		}),
		SessionStatus: promauto.NewGauge(prometheus.GaugeOpts{
			Name: "lingopipe_session_status",
			Help: "Current session status (0=idle, 1=connecting, 2=listening, 3=error)",
		}),
	}
}

func (m *Metrics) IncFramesSent() {
	if m != nil {
		m.FramesSent.Inc()
	}
}

func (m *Metrics) IncFramesDropped() {
	if m != nil {
		m.FramesDropped.Inc()
	}
}

func (m *Metrics) IncSendErrors() {
	if m != nil {
		m.SendErrors.Inc()
	}
}

func (m *Metrics) IncChunksScheduled() {
	if m != nil {
		m.ChunksScheduled.Inc()
	}
}

func (m *Metrics) IncDecodeErrors() {
	if m != nil {
		m.DecodeErrors.Inc()
	}
}

func (m *Metrics) IncInterruptions() {
	if m != nil {
		m.Interruptions.Inc()
	}
}

func (m *Metrics) SetActiveHandles(n int) {
	if m != nil {
		m.ActiveHandles.Set(float64(n))
	}
}

func (m *Metrics) IncSessionsStarted() {
	if m != nil {
		m.SessionsStarted.Inc()
	}
}

func (m *Metrics) IncSessionErrors() {
	if m != nil {
		m.SessionErrors.Inc()
	}
}

func (m *Metrics) IncTurnsCompleted() {
	if m != nil {
		m.TurnsCompleted.Inc()
	}
}

func (m *Metrics) SetSessionStatus(s int) {
	if m != nil {
		m.SessionStatus.Set(float64(s))
	}
}
