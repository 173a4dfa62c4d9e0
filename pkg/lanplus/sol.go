package lanplus

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/iniwex5/lanplus-go/pkg/ipmi"
	"github.com/iniwex5/lanplus-go/pkg/logger"
)

const (
	solMaxSeq  = 15
	solHdrLen  = 4
	solDataMax = 255
)

// solState SOL 载荷的收发状态, 会话重置时清零
type solState struct {
	active   bool
	instance uint8
	// maxOutbound 单个 SOL 包可携带的字符数, 0 表示不限制
	maxOutbound int

	txSeq       uint8
	lastRxSeq   uint8
	lastRxCount int
}

// SOLActivation Activate Payload 响应
type SOLActivation struct {
	Instance     uint8
	InboundSize  uint16 // BMC 可接收的最大载荷
	OutboundSize uint16 // BMC 发送的最大载荷
	Port         uint16
	VLAN         uint16
}

// SolRequest 发往 BMC 的 SOL 数据与控制操作
type SolRequest struct {
	Data []byte
	// Flags ipmi.SolOp* 操作位, 只随第一个分片发送
	Flags uint8
}

// OnSOLInput 设置 SOL 数据回调. 回调在确认包发出之后调用, 重复数据不会再次交付.
func (s *Session) OnSOLInput(fn func(data []byte)) {
	s.onSOL = fn
}

func (s *Session) nextSolSeq() uint8 {
	s.sol.txSeq = s.sol.txSeq%solMaxSeq + 1
	return s.sol.txSeq
}

// ActivateSOL 激活 SOL 载荷实例. 会话协商了加密/认证时 SOL 同样加密/认证.
func (s *Session) ActivateSOL(ctx context.Context, instance uint8) (*SOLActivation, error) {
	if s.state != StateActive {
		return nil, ErrNotActive
	}
	var aux uint8
	if s.suite.Crypt != ipmi.CRYPT_NONE {
		aux |= 0x80
	}
	if s.suite.Integrity != ipmi.INTEG_NONE {
		aux |= 0x40
	}
	rsp, err := s.sendCommand(ctx, &ipmi.Request{
		NetFn: ipmi.NetFnApp,
		Cmd:   ipmi.CmdActivatePayload,
		Data:  []byte{uint8(ipmi.PayloadSOL), instance, aux, 0, 0, 0},
	}, nil)
	if err != nil {
		return nil, err
	}
	if err := rsp.Err(); err != nil {
		return nil, fmt.Errorf("激活 SOL 失败: %w", err)
	}
	d := rsp.Data
	if len(d) < 12 {
		return nil, fmt.Errorf("%w: Activate Payload 响应 %d 字节", ipmi.ErrTruncatedPacket, len(d))
	}
	act := &SOLActivation{
		Instance:     instance,
		InboundSize:  binary.LittleEndian.Uint16(d[4:6]),
		OutboundSize: binary.LittleEndian.Uint16(d[6:8]),
		Port:         binary.LittleEndian.Uint16(d[8:10]),
		VLAN:         binary.LittleEndian.Uint16(d[10:12]),
	}
	if act.Port != uint16(s.cfg.Port) {
		s.Logger.Warn("BMC 要求在其他端口传输 SOL, 仍使用当前端口", logger.Int("port", int(act.Port)))
	}

	s.sol = solState{active: true, instance: instance}
	if n := int(act.InboundSize) - solHdrLen; n > 0 {
		s.sol.maxOutbound = min(n, solDataMax)
	}
	s.Logger.Info("SOL 已激活",
		logger.Uint8("instance", instance),
		logger.Int("maxOutbound", s.sol.maxOutbound))
	return act, nil
}

// DeactivateSOL 停用 SOL 载荷实例
func (s *Session) DeactivateSOL(ctx context.Context, instance uint8) error {
	if s.state != StateActive {
		return ErrNotActive
	}
	rsp, err := s.sendCommand(ctx, &ipmi.Request{
		NetFn: ipmi.NetFnApp,
		Cmd:   ipmi.CmdDeactivatePayload,
		Data:  []byte{uint8(ipmi.PayloadSOL), instance, 0, 0, 0, 0},
	}, nil)
	if err != nil {
		return err
	}
	s.sol.active = false
	return rsp.Err()
}

// SendSOL 发送 SOL 数据, 返回最后一个确认包.
// 超过 BMC 接收上限的数据拆分发送; BMC 只接受部分字符时重传剩余部分.
func (s *Session) SendSOL(ctx context.Context, req *SolRequest) (*ipmi.SolPacket, error) {
	if s.state != StateActive {
		return nil, ErrNotActive
	}
	data := req.Data
	flags := req.Flags
	var ack *ipmi.SolPacket
	for {
		chunk := data
		if limit := s.solChunkLimit(); len(chunk) > limit {
			chunk = chunk[:limit]
		}
		var err error
		if ack, err = s.sendSOLChunk(ctx, chunk, flags); err != nil {
			return ack, err
		}
		if ack.Flags&(ipmi.SolStatusNack|ipmi.SolStatusTransferUnavailable) != 0 {
			return ack, nil
		}
		data = data[len(chunk):]
		flags = 0
		if len(data) == 0 {
			return ack, nil
		}
	}
}

// solChunkLimit 单个 SOL 包的字符数上限. 确认字符数只有一个字节, 因此不超过 255.
func (s *Session) solChunkLimit() int {
	if s.sol.maxOutbound > 0 {
		return min(s.sol.maxOutbound, solDataMax)
	}
	return solDataMax
}

// sendSOLChunk 发送一个分片直到全部被接受.
// 每次重传使用新序号只携带未接受的部分; 连续 Retries 次没有进展时返回最后的确认包与 ErrNoResponse.
func (s *Session) sendSOLChunk(ctx context.Context, data []byte, flags uint8) (*ipmi.SolPacket, error) {
	stalled := 0
	for {
		seq := s.nextSolSeq()
		pkt, err := s.wrap(&ipmi.SolPacket{Sequence: seq, Flags: flags, Data: data})
		if err != nil {
			return nil, err
		}

		var ack *ipmi.SolPacket
		err = s.sendRecv(ctx, pkt, s.matchPayload(func(in *inbound) (bool, error) {
			sp, ok := in.payload.(*ipmi.SolPacket)
			if !ok || sp.AckSequence != seq {
				return false, nil
			}
			ack = sp
			return true, nil
		}))
		if err != nil {
			return nil, err
		}

		if ack.Flags&ipmi.SolStatusInactive != 0 {
			s.Logger.Warn("BMC 报告 SOL 已停用")
			s.sol.active = false
		}
		accepted := min(int(ack.AcceptedCount), len(data))
		s.metrics.SolOut(accepted)
		if accepted == len(data) || ack.Flags&(ipmi.SolStatusNack|ipmi.SolStatusTransferUnavailable) != 0 {
			return ack, nil
		}

		if accepted == 0 {
			if stalled++; stalled >= s.cfg.Retries {
				return ack, fmt.Errorf("%w: BMC 连续 %d 次未接受 SOL 数据, 剩余 %d 字节",
					ErrNoResponse, stalled, len(data))
			}
		} else {
			stalled = 0
		}
		s.Logger.Debug("SOL 部分确认, 重传剩余数据",
			logger.Int("accepted", accepted),
			logger.Int("remaining", len(data)-accepted))
		data = data[accepted:]
		flags = 0
	}
}

// deliverSOL 确认 BMC 的 SOL 数据包并交付新数据.
// 与上一个包序号相同时只交付超出上次长度的部分.
func (s *Session) deliverSOL(sp *ipmi.SolPacket) error {
	// 确认字符数只有一个字节, 超出部分不接受, 由 BMC 重传
	data := sp.Data
	if len(data) > solDataMax {
		data = data[:solDataMax]
	}
	fresh := data
	if sp.Sequence == s.sol.lastRxSeq {
		if len(data) <= s.sol.lastRxCount {
			fresh = nil
		} else {
			fresh = data[s.sol.lastRxCount:]
		}
		s.sol.lastRxCount = max(s.sol.lastRxCount, len(data))
	} else {
		s.sol.lastRxSeq = sp.Sequence
		s.sol.lastRxCount = len(data)
	}
	if sp.Flags&ipmi.SolStatusInactive != 0 {
		s.Logger.Warn("BMC 报告 SOL 已停用")
		s.sol.active = false
	}

	pkt, err := s.wrap(&ipmi.SolPacket{AckSequence: sp.Sequence, AcceptedCount: uint8(len(data))})
	if err != nil {
		return err
	}
	if err := s.sendOnly(pkt); err != nil {
		return err
	}

	if len(fresh) == 0 {
		return nil
	}
	s.metrics.SolIn(len(fresh))
	if s.onSOL != nil {
		s.onSOL(fresh)
	}
	return nil
}

// RecvSOL 在一个超时周期内等待 BMC 发来的 SOL 数据. 数据已确认并交给回调; 超时返回 (nil, nil).
func (s *Session) RecvSOL(ctx context.Context) (*ipmi.SolPacket, error) {
	if s.state != StateActive {
		return nil, ErrNotActive
	}
	var got *ipmi.SolPacket
	_, err := s.pollRecv(ctx, s.matchPayload(func(in *inbound) (bool, error) {
		sp, ok := in.payload.(*ipmi.SolPacket)
		if !ok || sp.IsAckOnly() {
			return false, nil
		}
		got = sp
		return true, nil
	}))
	if err != nil {
		return nil, err
	}
	return got, nil
}

// PollSOL 与 RecvSOL 相同, 但最多等待 wait
func (s *Session) PollSOL(ctx context.Context, wait time.Duration) (*ipmi.SolPacket, error) {
	saved := s.timeout
	s.timeout = wait
	defer func() { s.timeout = saved }()
	return s.RecvSOL(ctx)
}

// SOLActive SOL 载荷是否处于激活状态
func (s *Session) SOLActive() bool {
	return s.sol.active
}
