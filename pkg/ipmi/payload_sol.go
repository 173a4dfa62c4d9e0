package ipmi

import "fmt"

const solHeaderLen = 4

// SOL 控制台 -> BMC 操作位
const (
	SolOpNack           = 0x40
	SolOpRingWOR        = 0x20
	SolOpGenerateBreak  = 0x10
	SolOpDeassertCTS    = 0x08
	SolOpDeassertDCDDSR = 0x04
	SolOpFlushInbound   = 0x02
	SolOpFlushOutbound  = 0x01
)

// SOL BMC -> 控制台状态位
const (
	SolStatusNack                = 0x40
	SolStatusTransferUnavailable = 0x20
	SolStatusInactive            = 0x10
	SolStatusTransmitOverrun     = 0x08
	SolStatusBreakDetected       = 0x04
)

// SolPacket SOL 载荷: 序号 | 确认序号 | 已接受字符数 | 操作/状态 | 数据
// 序号 0 表示仅确认包
type SolPacket struct {
	Sequence      uint8 // 1-15 循环
	AckSequence   uint8
	AcceptedCount uint8
	Flags         uint8
	Data          []byte
}

func (p *SolPacket) Type() PayloadType { return PayloadSOL }
func (p *SolPacket) isPayload()        {}

// IsAckOnly 是否为不携带数据的确认包
func (p *SolPacket) IsAckOnly() bool {
	return p.Sequence == 0
}

func (p *SolPacket) Encode() ([]byte, error) {
	if p.Sequence > 0x0F || p.AckSequence > 0x0F {
		return nil, fmt.Errorf("SOL 序号超出范围: seq=%d ack=%d", p.Sequence, p.AckSequence)
	}
	buf := make([]byte, solHeaderLen, solHeaderLen+len(p.Data))
	buf[0] = p.Sequence
	buf[1] = p.AckSequence
	buf[2] = p.AcceptedCount
	buf[3] = p.Flags
	return append(buf, p.Data...), nil
}

func DecodeSolPacket(data []byte) (*SolPacket, error) {
	if len(data) < solHeaderLen {
		return nil, fmt.Errorf("%w: SOL 载荷需要至少 %d 字节", ErrTruncatedPacket, solHeaderLen)
	}
	return &SolPacket{
		Sequence:      data[0] & 0x0F,
		AckSequence:   data[1] & 0x0F,
		AcceptedCount: data[2],
		Flags:         data[3],
		Data:          append([]byte{}, data[solHeaderLen:]...),
	}, nil
}
