package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"frame-capture/internal/domain"
)

// Recorder счётчики сессии захвата в отдельном реестре
type Recorder struct {
	registry *prometheus.Registry

	FramesDecodedTotal  prometheus.Counter
	DecodeFailuresTotal prometheus.Counter
	SeeksTotal          prometheus.Counter
	SavesTotal          *prometheus.CounterVec
	CommandsTotal       *prometheus.CounterVec
	CurrentFrameIndex   prometheus.Gauge
}

// NewRecorder регистрирует метрики в новом реестре
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Recorder{
		registry: reg,
		FramesDecodedTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "frame_capture_frames_decoded_total",
			Help: "Total number of frames decoded from the source video",
		}),
		DecodeFailuresTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "frame_capture_decode_failures_total",
			Help: "Total number of positions the decoder could not produce a frame for",
		}),
		SeeksTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "frame_capture_seeks_total",
			Help: "Total number of seeks issued to the video source",
		}),
		SavesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "frame_capture_saves_total",
			Help: "Total number of frame saves, by result",
		}, []string{"result"}),
		CommandsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "frame_capture_commands_total",
			Help: "Total number of operator commands applied, by command",
		}, []string{"command"}),
		CurrentFrameIndex: factory.NewGauge(prometheus.GaugeOpts{
			Name: "frame_capture_current_frame_index",
			Help: "Index of the last decoded frame",
		}),
	}
}

// Handler отдаёт метрики в формате Prometheus
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) FrameDecoded(index int) {
	r.FramesDecodedTotal.Inc()
	r.CurrentFrameIndex.Set(float64(index))
}

func (r *Recorder) DecodeFailed() { r.DecodeFailuresTotal.Inc() }

func (r *Recorder) Seeked() { r.SeeksTotal.Inc() }

func (r *Recorder) CommandApplied(cmd domain.Command) {
	if cmd == domain.CommandNone {
		return
	}
	r.CommandsTotal.WithLabelValues(cmd.String()).Inc()
}

func (r *Recorder) FrameSaved(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	r.SavesTotal.WithLabelValues(result).Inc()
}
