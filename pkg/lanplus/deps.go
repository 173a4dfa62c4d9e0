package lanplus

import "time"

// Transport 与单个 BMC 之间的数据报通道
type Transport interface {
	Send([]byte) error
	// Wait 在 timeout 内等待可读数据, 超时返回 false
	Wait(timeout time.Duration) (bool, error)
	Recv() ([]byte, error)
	Close() error
}
