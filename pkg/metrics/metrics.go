package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "lanplus"

// 丢弃原因标签
const (
	DropDecode    = "decode"
	DropIntegrity = "integrity"
	DropState     = "state"
	DropUnmatched = "unmatched"
	DropClass     = "class"
)

// Collector 会话引擎计数器. nil 接收者上的方法均为空操作.
type Collector struct {
	PacketsSent     prometheus.Counter
	PacketsReceived prometheus.Counter
	PacketsDropped  *prometheus.CounterVec
	Retries         prometheus.Counter
	Handshakes      *prometheus.CounterVec
	SolBytes        *prometheus.CounterVec
}

// New 创建计数器并注册到 reg; reg 为 nil 时不注册
func New(reg prometheus.Registerer) *Collector {
	c := &Collector{
		PacketsSent: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_sent_total",
			Help:      "RMCP+ packets written to the BMC socket, including retransmissions.",
		}),
		PacketsReceived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_received_total",
			Help:      "Datagrams read from the BMC socket.",
		}),
		PacketsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "packets_dropped_total",
			Help:      "Inbound datagrams discarded by the receive loop.",
		}, []string{"reason"}),
		Retries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retries_total",
			Help:      "Retransmissions after a full timeout interval without a matching response.",
		}),
		Handshakes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handshakes_total",
			Help:      "Session establishment attempts by result.",
		}, []string{"result"}),
		SolBytes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sol_bytes_total",
			Help:      "Serial-over-LAN character bytes by direction.",
		}, []string{"direction"}),
	}
	if reg != nil {
		reg.MustRegister(c.PacketsSent, c.PacketsReceived, c.PacketsDropped, c.Retries, c.Handshakes, c.SolBytes)
	}
	return c
}

func (c *Collector) Sent() {
	if c != nil {
		c.PacketsSent.Inc()
	}
}

func (c *Collector) Received() {
	if c != nil {
		c.PacketsReceived.Inc()
	}
}

func (c *Collector) Dropped(reason string) {
	if c != nil {
		c.PacketsDropped.WithLabelValues(reason).Inc()
	}
}

func (c *Collector) Retry() {
	if c != nil {
		c.Retries.Inc()
	}
}

// Handshake result: "success" 或错误类别
func (c *Collector) Handshake(result string) {
	if c != nil {
		c.Handshakes.WithLabelValues(result).Inc()
	}
}

// SolOut / SolIn 统计 SOL 字节
func (c *Collector) SolOut(n int) {
	if c != nil && n > 0 {
		c.SolBytes.WithLabelValues("out").Add(float64(n))
	}
}

func (c *Collector) SolIn(n int) {
	if c != nil && n > 0 {
		c.SolBytes.WithLabelValues("in").Add(float64(n))
	}
}
