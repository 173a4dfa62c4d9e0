package ipmi

import (
	"errors"
	"fmt"
)

// ipmbFrame IPMB 消息帧:
// addr1 | netfn<<2|lun1 | cs1 | addr2 | seq<<2|lun2 | cmd | data... | cs2
type ipmbFrame struct {
	addr1 uint8
	netFn uint8
	lun1  uint8
	addr2 uint8
	seq   uint8
	lun2  uint8
	cmd   uint8
	data  []byte
}

const ipmbMinLen = 7

func (f *ipmbFrame) encode() []byte {
	buf := make([]byte, 0, ipmbMinLen+len(f.data))
	buf = append(buf, f.addr1, f.netFn<<2|f.lun1&0x03)
	buf = append(buf, Checksum(buf[0:2]))
	buf = append(buf, f.addr2, f.seq<<2|f.lun2&0x03, f.cmd)
	buf = append(buf, f.data...)
	return append(buf, Checksum(buf[3:]))
}

func decodeIpmb(b []byte, verify bool) (*ipmbFrame, error) {
	if len(b) < ipmbMinLen {
		return nil, fmt.Errorf("%w: IPMB 帧需要至少 %d 字节, 实际 %d", ErrTruncatedPacket, ipmbMinLen, len(b))
	}
	if verify {
		if Checksum(b[0:2]) != b[2] {
			return nil, fmt.Errorf("%w: 头部校验和", ErrChecksum)
		}
		if Checksum(b[3:len(b)-1]) != b[len(b)-1] {
			return nil, fmt.Errorf("%w: 数据校验和", ErrChecksum)
		}
	}
	return &ipmbFrame{
		addr1: b[0],
		netFn: b[1] >> 2,
		lun1:  b[1] & 0x03,
		addr2: b[3],
		seq:   b[4] >> 2,
		lun2:  b[4] & 0x03,
		cmd:   b[5],
		data:  b[6 : len(b)-1],
	}, nil
}

func (f *ipmbFrame) isTrackedSendMessage() bool {
	return f.netFn == NetFnApp && f.cmd == CmdSendMessage && len(f.data) > ipmbMinLen &&
		f.data[0]&SendMessageTrackRequest != 0
}

// Bridge 经 Send Message 转发到其他控制器的目标描述
type Bridge struct {
	MyAddr         uint8 // 内层请求的 rqAddr, 通常为 0x20
	TargetAddr     uint8
	TargetChannel  uint8
	TransitAddr    uint8 // 0 或等于 MyAddr 时为单层桥接
	TransitChannel uint8
}

// Double 是否为双层桥接
func (b *Bridge) Double() bool {
	return b.TransitAddr != 0 && b.TransitAddr != b.MyAddr
}

// Level 桥接层数
func (b *Bridge) Level() int {
	switch {
	case b == nil:
		return 0
	case b.Double():
		return 2
	}
	return 1
}

// IpmiRequest 控制台发往 BMC 的 IPMI 消息载荷
type IpmiRequest struct {
	RsAddr uint8
	NetFn  uint8
	RsLUN  uint8
	RqAddr uint8
	RqSeq  uint8 // 0-63
	RqLUN  uint8
	Cmd    uint8
	Data   []byte
	Bridge *Bridge
}

func (r *IpmiRequest) Type() PayloadType { return PayloadIPMI }
func (r *IpmiRequest) isPayload()        {}

func (r *IpmiRequest) Encode() ([]byte, error) {
	if r.RqSeq > 0x3F {
		return nil, fmt.Errorf("请求序号超出范围: %d", r.RqSeq)
	}
	if r.NetFn > 0x3F {
		return nil, fmt.Errorf("网络功能码超出范围: 0x%02x", r.NetFn)
	}
	if r.Bridge == nil {
		f := &ipmbFrame{
			addr1: r.RsAddr, netFn: r.NetFn, lun1: r.RsLUN,
			addr2: r.RqAddr, seq: r.RqSeq, lun2: r.RqLUN,
			cmd: r.Cmd, data: r.Data,
		}
		return f.encode(), nil
	}

	b := r.Bridge
	inner := &ipmbFrame{
		addr1: b.TargetAddr, netFn: r.NetFn, lun1: r.RsLUN,
		addr2: b.MyAddr, seq: r.RqSeq, lun2: r.RqLUN,
		cmd: r.Cmd, data: r.Data,
	}
	wrapped := append([]byte{SendMessageTrackRequest | b.TargetChannel&0x0F}, inner.encode()...)

	if b.Double() {
		transit := &ipmbFrame{
			addr1: b.TransitAddr, netFn: NetFnApp,
			addr2: b.MyAddr, seq: r.RqSeq,
			cmd: CmdSendMessage, data: wrapped,
		}
		wrapped = append([]byte{SendMessageTrackRequest | b.TransitChannel&0x0F}, transit.encode()...)
	}

	outer := &ipmbFrame{
		addr1: r.RsAddr, netFn: NetFnApp,
		addr2: r.RqAddr, seq: r.RqSeq,
		cmd: CmdSendMessage, data: wrapped,
	}
	return outer.encode(), nil
}

// DecodeIpmiRequest 解析请求, 识别带跟踪位的 Send Message 桥接封装
func DecodeIpmiRequest(data []byte) (*IpmiRequest, error) {
	outer, err := decodeIpmb(data, true)
	if err != nil {
		return nil, err
	}
	req := &IpmiRequest{
		RsAddr: outer.addr1, NetFn: outer.netFn, RsLUN: outer.lun1,
		RqAddr: outer.addr2, RqSeq: outer.seq, RqLUN: outer.lun2,
		Cmd: outer.cmd, Data: outer.data,
	}
	if !outer.isTrackedSendMessage() {
		return req, nil
	}

	first, err := decodeIpmb(outer.data[1:], true)
	if err != nil {
		return req, nil
	}
	b := &Bridge{TargetChannel: outer.data[0] & 0x0F}
	inner := first
	if first.isTrackedSendMessage() {
		second, err := decodeIpmb(first.data[1:], true)
		if err == nil {
			b.TransitAddr = first.addr1
			b.TransitChannel = b.TargetChannel
			b.TargetChannel = first.data[0] & 0x0F
			inner = second
		}
	}
	b.TargetAddr = inner.addr1
	b.MyAddr = inner.addr2
	if b.TransitAddr != 0 && !b.Double() {
		return req, nil
	}

	req.NetFn = inner.netFn
	req.RsLUN = inner.lun1
	req.RqLUN = inner.lun2
	req.Cmd = inner.cmd
	req.Data = inner.data
	req.Bridge = b
	return req, nil
}

// IpmiResponse BMC 返回的 IPMI 消息载荷
type IpmiResponse struct {
	RqAddr         uint8
	NetFn          uint8
	RqLUN          uint8
	RsAddr         uint8
	RqSeq          uint8
	RsLUN          uint8
	Cmd            uint8
	CompletionCode CompletionCode
	Data           []byte
}

func (r *IpmiResponse) Type() PayloadType { return PayloadIPMI }
func (r *IpmiResponse) isPayload()        {}

func (r *IpmiResponse) Encode() ([]byte, error) {
	if r.RqSeq > 0x3F {
		return nil, fmt.Errorf("请求序号超出范围: %d", r.RqSeq)
	}
	f := &ipmbFrame{
		addr1: r.RqAddr, netFn: r.NetFn, lun1: r.RqLUN,
		addr2: r.RsAddr, seq: r.RqSeq, lun2: r.RsLUN,
		cmd: r.Cmd, data: append([]byte{uint8(r.CompletionCode)}, r.Data...),
	}
	return f.encode(), nil
}

func decodeResponse(data []byte, verify bool) (*IpmiResponse, error) {
	f, err := decodeIpmb(data, verify)
	if err != nil {
		return nil, err
	}
	if len(f.data) < 1 {
		return nil, fmt.Errorf("%w: 响应缺少完成码", ErrTruncatedPacket)
	}
	return &IpmiResponse{
		RqAddr: f.addr1, NetFn: f.netFn, RqLUN: f.lun1,
		RsAddr: f.addr2, RqSeq: f.seq, RsLUN: f.lun2,
		Cmd: f.cmd, CompletionCode: CompletionCode(f.data[0]), Data: f.data[1:],
	}, nil
}

func DecodeIpmiResponse(data []byte) (*IpmiResponse, error) {
	return decodeResponse(data, true)
}

var errNoEmbedded = errors.New("Send Message 响应中没有内嵌响应")

// Embedded 解析 Send Message 响应数据中内嵌的目标响应 (去掉 7 字节头与末尾校验和)
func (r *IpmiResponse) Embedded() (*IpmiResponse, error) {
	if r.Cmd != CmdSendMessage || len(r.Data) == 0 {
		return nil, errNoEmbedded
	}
	return decodeResponse(r.Data, false)
}

// Request 调用方视角的 IPMI 命令
type Request struct {
	NetFn  uint8
	LUN    uint8
	Cmd    uint8
	Data   []byte
	Bridge *Bridge // 为 nil 时使用会话配置的桥接目标
}

// Response 调用方视角的 IPMI 响应
type Response struct {
	NetFn          uint8
	Cmd            uint8
	CompletionCode CompletionCode
	Data           []byte
}

// Err 非零完成码转为 *CommandError
func (r *Response) Err() error {
	if r.CompletionCode == CommandCompleted {
		return nil
	}
	return &CommandError{Code: r.CompletionCode, NetFn: r.NetFn, Cmd: r.Cmd}
}

// ToResponse 去掉 IPMB 寻址信息
func (r *IpmiResponse) ToResponse() *Response {
	return &Response{NetFn: r.NetFn, Cmd: r.Cmd, CompletionCode: r.CompletionCode, Data: r.Data}
}
