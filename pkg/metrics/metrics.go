// Package metrics exports instrument counters to Prometheus.
//
// Core packages depend only on the [Recorder] interface. [Nop] discards
// everything and is the default; [Metrics] registers collectors with a
// Prometheus registry and [NewHandler] serves them over HTTP.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "tmcdaq"

// Recorder receives instrument events.
type Recorder interface {
	// SamplesAcquired counts frames appended to the sample ring.
	SamplesAcquired(frames int)
	// BytesDropped counts frame bytes lost to ring overflow.
	BytesDropped(n int)
	// JobCompleted counts acquisition jobs that ran to completion.
	JobCompleted()
	// SamplingState reports whether the engine is running.
	SamplingState(running bool)
	// RingFill reports the number of buffered bytes.
	RingFill(n int)
	// BulkInPacket counts one Bulk-IN packet and its payload size.
	BulkInPacket(payload int)
	// ControlRequest counts a class request and the status it returned.
	ControlRequest(request string, status uint8)
	// ProtocolError counts a bulk transport violation.
	ProtocolError(reason string)
	// Command counts a dispatched command and its response.
	Command(name, result string)
}

// Nop is a Recorder that discards all events.
type Nop struct{}

func (Nop) SamplesAcquired(int)          {}
func (Nop) BytesDropped(int)             {}
func (Nop) JobCompleted()                {}
func (Nop) SamplingState(bool)           {}
func (Nop) RingFill(int)                 {}
func (Nop) BulkInPacket(int)             {}
func (Nop) ControlRequest(string, uint8) {}
func (Nop) ProtocolError(string)         {}
func (Nop) Command(string, string)       {}

// Metrics is a Recorder backed by Prometheus collectors.
type Metrics struct {
	samples      prometheus.Counter
	dropped      prometheus.Counter
	jobs         prometheus.Counter
	running      prometheus.Gauge
	ringFill     prometheus.Gauge
	packets      prometheus.Counter
	payloadBytes prometheus.Counter
	controls     *prometheus.CounterVec
	protocolErrs *prometheus.CounterVec
	commands     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		samples: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "daq", Name: "samples_total",
			Help: "Sample frames stored in the ring buffer.",
		}),
		dropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "daq", Name: "dropped_bytes_total",
			Help: "Sample bytes discarded because the ring buffer was full.",
		}),
		jobs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "daq", Name: "jobs_completed_total",
			Help: "Acquisition jobs that collected all their samples.",
		}),
		running: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "daq", Name: "running",
			Help: "1 while the sampling engine is running.",
		}),
		ringFill: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "daq", Name: "ring_bytes",
			Help: "Bytes waiting in the sample ring buffer.",
		}),
		packets: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "usbtmc", Name: "bulk_in_packets_total",
			Help: "DEV_DEP_MSG_IN packets sent.",
		}),
		payloadBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "usbtmc", Name: "bulk_in_payload_bytes_total",
			Help: "Payload bytes carried by DEV_DEP_MSG_IN packets.",
		}),
		controls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "usbtmc", Name: "control_requests_total",
			Help: "USBTMC class requests by request and status.",
		}, []string{"request", "status"}),
		protocolErrs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "usbtmc", Name: "protocol_errors_total",
			Help: "Bulk transport violations that halted an endpoint.",
		}, []string{"reason"}),
		commands: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "command", Name: "executed_total",
			Help: "Instrument commands by name and response.",
		}, []string{"command", "result"}),
	}

	for _, c := range []prometheus.Collector{
		m.samples, m.dropped, m.jobs, m.running, m.ringFill,
		m.packets, m.payloadBytes, m.controls, m.protocolErrs, m.commands,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) SamplesAcquired(frames int) { m.samples.Add(float64(frames)) }

func (m *Metrics) BytesDropped(n int) { m.dropped.Add(float64(n)) }

func (m *Metrics) JobCompleted() { m.jobs.Inc() }

func (m *Metrics) SamplingState(running bool) {
	if running {
		m.running.Set(1)
	} else {
		m.running.Set(0)
	}
}

func (m *Metrics) RingFill(n int) { m.ringFill.Set(float64(n)) }

func (m *Metrics) BulkInPacket(payload int) {
	m.packets.Inc()
	m.payloadBytes.Add(float64(payload))
}

func (m *Metrics) ControlRequest(request string, status uint8) {
	m.controls.WithLabelValues(request, "0x"+strconv.FormatUint(uint64(status), 16)).Inc()
}

func (m *Metrics) ProtocolError(reason string) { m.protocolErrs.WithLabelValues(reason).Inc() }

func (m *Metrics) Command(name, result string) { m.commands.WithLabelValues(name, result).Inc() }

var (
	_ Recorder = Nop{}
	_ Recorder = (*Metrics)(nil)
)
