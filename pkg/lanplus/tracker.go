package lanplus

import "github.com/iniwex5/lanplus-go/pkg/ipmi"

const maxRqSeq = 64

type pendingKey struct {
	seq uint8
	cmd uint8
}

// PendingRequest 等待响应的请求记录
type PendingRequest struct {
	Seq   uint8
	Cmd   uint8
	NetFn uint8
	// Bridged 桥接层数 (0-2)
	Bridged int
	// Wrapper 为 true 表示外层 Send Message 的辅助记录
	Wrapper bool
}

// RequestTracker 按 (序号, 命令) 记录未完成的请求.
// 序号在 0-63 间循环, 仍在等待响应的序号不会被复用.
type RequestTracker struct {
	next    uint8
	pending map[pendingKey]*PendingRequest
	inUse   map[uint8]int
}

func NewRequestTracker() *RequestTracker {
	return &RequestTracker{
		pending: make(map[pendingKey]*PendingRequest),
		inUse:   make(map[uint8]int),
	}
}

// Add 为请求分配序号并登记
func (t *RequestTracker) Add(req *ipmi.Request, bridged int) (*PendingRequest, error) {
	for i := 0; i < maxRqSeq; i++ {
		seq := t.next
		t.next = (t.next + 1) % maxRqSeq
		if t.inUse[seq] > 0 {
			continue
		}
		e := &PendingRequest{Seq: seq, Cmd: req.Cmd, NetFn: req.NetFn, Bridged: bridged}
		t.insert(e)
		return e, nil
	}
	return nil, ErrTrackerFull
}

// AddWrapper 登记桥接请求外层 Send Message 的辅助记录, 与内层共享序号
func (t *RequestTracker) AddWrapper(seq uint8) *PendingRequest {
	e := &PendingRequest{Seq: seq, Cmd: ipmi.CmdSendMessage, NetFn: ipmi.NetFnApp, Wrapper: true}
	t.insert(e)
	return e
}

func (t *RequestTracker) insert(e *PendingRequest) {
	k := pendingKey{e.Seq, e.Cmd}
	if _, ok := t.pending[k]; !ok {
		t.inUse[e.Seq]++
	}
	t.pending[k] = e
}

// Lookup 按响应的序号与命令查找请求
func (t *RequestTracker) Lookup(seq, cmd uint8) *PendingRequest {
	return t.pending[pendingKey{seq, cmd}]
}

// Remove 删除记录
func (t *RequestTracker) Remove(seq, cmd uint8) {
	k := pendingKey{seq, cmd}
	if _, ok := t.pending[k]; !ok {
		return
	}
	delete(t.pending, k)
	if t.inUse[seq]--; t.inUse[seq] <= 0 {
		delete(t.inUse, seq)
	}
}

func (t *RequestTracker) Len() int {
	return len(t.pending)
}

// Reset 会话拆除时丢弃全部记录
func (t *RequestTracker) Reset() {
	t.pending = make(map[pendingKey]*PendingRequest)
	t.inUse = make(map[uint8]int)
	t.next = 0
}
