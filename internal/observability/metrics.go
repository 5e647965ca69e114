package observability

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/danmuck/loralink/internal/protocol"
	"github.com/danmuck/loralink/internal/protocol/chunk"
	"github.com/danmuck/loralink/internal/radio"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loralink",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests.",
		},
		[]string{"node", "method", "path", "status"},
	)
	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "loralink",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"node", "method", "path", "status"},
	)

	linkState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "loralink",
			Subsystem: "radio",
			Name:      "state",
			Help:      "Current link state (0 idle, 1 transmitting, 2 listening, 3 fault).",
		},
		[]string{"node"},
	)
	linkEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loralink",
			Subsystem: "radio",
			Name:      "events_total",
			Help:      "Driver completion events applied by the link.",
		},
		[]string{"node", "kind"},
	)
	linkTruncated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loralink",
			Subsystem: "radio",
			Name:      "rx_truncated_total",
			Help:      "Received packets cut to the hardware maximum.",
		},
		[]string{"node"},
	)
	linkRejected = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loralink",
			Subsystem: "radio",
			Name:      "send_rejected_total",
			Help:      "Sends refused by the link.",
		},
		[]string{"node", "reason"},
	)
	linkRSSI = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "loralink",
			Subsystem: "radio",
			Name:      "last_rssi_dbm",
			Help:      "RSSI of the most recent received packet.",
		},
		[]string{"node"},
	)
	linkSNR = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "loralink",
			Subsystem: "radio",
			Name:      "last_snr_db",
			Help:      "SNR of the most recent received packet.",
		},
		[]string{"node"},
	)

	framesQueued = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loralink",
			Subsystem: "transport",
			Name:      "frames_queued_total",
			Help:      "Frames sealed and queued for segmentation.",
		},
		[]string{"node"},
	)
	segmentsSent = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loralink",
			Subsystem: "transport",
			Name:      "segments_sent_total",
			Help:      "Segments accepted by the link.",
		},
		[]string{"node"},
	)
	framesDecoded = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loralink",
			Subsystem: "transport",
			Name:      "frames_decoded_total",
			Help:      "Frames reassembled and decrypted.",
		},
		[]string{"node"},
	)
	framesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loralink",
			Subsystem: "transport",
			Name:      "frames_dropped_total",
			Help:      "Reassembled frames that failed to decode.",
		},
		[]string{"node", "reason"},
	)
	resyncs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "loralink",
			Subsystem: "transport",
			Name:      "resyncs_total",
			Help:      "Invalid length prefixes skipped by the reassembler.",
		},
		[]string{"node"},
	)
	plaintextBytes = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "loralink",
			Subsystem: "transport",
			Name:      "plaintext_bytes",
			Help:      "Size of decoded plaintexts.",
			Buckets:   []float64{8, 16, 32, 64, 128, 223},
		},
		[]string{"node"},
	)
)

func RegisterMetrics() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpRequests, httpDuration,
			linkState, linkEvents, linkTruncated, linkRejected, linkRSSI, linkSNR,
			framesQueued, segmentsSent, framesDecoded, framesDropped, resyncs, plaintextBytes,
		)
	})
}

func RecordHTTPRequest(node, method, path string, status int, duration time.Duration) {
	RegisterMetrics()
	statusLabel := strconv.Itoa(status)
	httpRequests.WithLabelValues(node, method, path, statusLabel).Inc()
	httpDuration.WithLabelValues(node, method, path, statusLabel).Observe(duration.Seconds())
}

// NodeMetrics exports link and transport activity for one node. It satisfies
// both radio.Observer and chunk.Observer.
type NodeMetrics struct {
	node string
}

var (
	_ radio.Observer = (*NodeMetrics)(nil)
	_ chunk.Observer = (*NodeMetrics)(nil)
)

func NewNodeMetrics(node string) *NodeMetrics {
	RegisterMetrics()
	return &NodeMetrics{node: node}
}

func (m *NodeMetrics) LinkTransition(_, to radio.State) {
	linkState.WithLabelValues(m.node).Set(float64(to))
}

func (m *NodeMetrics) LinkEvent(ev radio.Event, truncated bool) {
	linkEvents.WithLabelValues(m.node, ev.Kind.String()).Inc()
	if ev.Kind != radio.RxDone {
		return
	}
	if truncated {
		linkTruncated.WithLabelValues(m.node).Inc()
	}
	linkRSSI.WithLabelValues(m.node).Set(float64(ev.RSSI))
	linkSNR.WithLabelValues(m.node).Set(float64(ev.SNR))
}

func (m *NodeMetrics) LinkSendRejected(_ int, reason error) {
	linkRejected.WithLabelValues(m.node, rejectReason(reason)).Inc()
}

func (m *NodeMetrics) FrameQueued(int, int) {
	framesQueued.WithLabelValues(m.node).Inc()
}

func (m *NodeMetrics) SegmentSent(int) {
	segmentsSent.WithLabelValues(m.node).Inc()
}

func (m *NodeMetrics) FrameDecoded(size int) {
	framesDecoded.WithLabelValues(m.node).Inc()
	plaintextBytes.WithLabelValues(m.node).Observe(float64(size))
}

func (m *NodeMetrics) FrameDropped(reason error) {
	framesDropped.WithLabelValues(m.node, dropReason(reason)).Inc()
}

func (m *NodeMetrics) Resynced() {
	resyncs.WithLabelValues(m.node).Inc()
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, radio.ErrTransmitBusy):
		return "busy"
	case errors.Is(err, radio.ErrEmptySend):
		return "empty"
	case errors.Is(err, radio.ErrOversize):
		return "oversize"
	default:
		return "driver"
	}
}

func dropReason(err error) string {
	switch {
	case errors.Is(err, protocol.ErrBadPadding):
		return "bad_padding"
	case errors.Is(err, protocol.ErrEmptyPayload):
		return "empty"
	case errors.Is(err, protocol.ErrInvalidLength):
		return "invalid_length"
	default:
		return "other"
	}
}
