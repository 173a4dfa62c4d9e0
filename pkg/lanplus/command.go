package lanplus

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/iniwex5/lanplus-go/pkg/ipmi"
	"github.com/iniwex5/lanplus-go/pkg/logger"
)

// SendCommand 发送 IPMI 命令并等待匹配的响应.
// req.Bridge 为 nil 时使用会话配置的桥接目标. 非零完成码通过 Response.Err 获取.
// 会话未激活 (包括被中止后) 时返回 ErrNotActive, 不会以明文发出.
func (s *Session) SendCommand(ctx context.Context, req *ipmi.Request) (*ipmi.Response, error) {
	if s.state != StateActive {
		return nil, ErrNotActive
	}
	b := req.Bridge
	if b == nil {
		b = s.cfg.bridge()
	}
	return s.sendCommand(ctx, req, b)
}

// sendCommand 会话管理命令以 nil bridge 调用, 始终发往 BMC 本身.
// 只有会话外的 Get Channel Authentication Capabilities 在 PreSession 下经此发送.
func (s *Session) sendCommand(ctx context.Context, req *ipmi.Request, bridge *ipmi.Bridge) (*ipmi.Response, error) {
	if s.transport == nil {
		return nil, ErrNotActive
	}
	if _, err := nextSendState(s.state, ipmi.PayloadIPMI); err != nil {
		return nil, err
	}

	entry, err := s.tracker.Add(req, bridge.Level())
	if err != nil {
		return nil, err
	}
	defer s.tracker.Remove(entry.Seq, entry.Cmd)
	if bridge != nil {
		s.tracker.AddWrapper(entry.Seq)
		defer s.tracker.Remove(entry.Seq, ipmi.CmdSendMessage)
	}

	pkt, err := s.wrap(&ipmi.IpmiRequest{
		RsAddr: ipmi.BMC_SA,
		NetFn:  req.NetFn,
		RsLUN:  req.LUN,
		RqAddr: ipmi.REMOTE_SWID,
		RqSeq:  entry.Seq,
		Cmd:    req.Cmd,
		Data:   req.Data,
		Bridge: bridge,
	})
	if err != nil {
		return nil, err
	}

	var result *ipmi.Response
	err = s.sendRecv(ctx, pkt, s.matchPayload(func(in *inbound) (bool, error) {
		rsp, ok := in.payload.(*ipmi.IpmiResponse)
		if !ok {
			return false, nil
		}
		e := s.tracker.Lookup(rsp.RqSeq, rsp.Cmd)
		if e == nil || e.Seq != entry.Seq {
			return false, nil
		}
		if e.Wrapper {
			return s.handleSendMessage(entry, rsp, &result), nil
		}
		result = rsp.ToResponse()
		return true, nil
	}))
	if err != nil {
		return nil, err
	}
	return result, nil
}

// handleSendMessage 处理桥接请求外层 Send Message 的响应.
// 响应内嵌目标响应时直接解出; 否则删除外层记录, 继续等待单独到达的内层响应.
func (s *Session) handleSendMessage(entry *PendingRequest, rsp *ipmi.IpmiResponse, result **ipmi.Response) bool {
	if rsp.CompletionCode != ipmi.CommandCompleted {
		if rsp.CompletionCode == ipmi.ErrInvalidDataField && s.cfg.Quirks.BridgeInvalidData {
			s.Logger.Debug("Send Message 返回 0xCC, 继续等待内层响应")
			s.tracker.Remove(entry.Seq, ipmi.CmdSendMessage)
			return false
		}
		*result = rsp.ToResponse()
		return true
	}

	inner, err := rsp.Embedded()
	if err != nil {
		s.tracker.Remove(entry.Seq, ipmi.CmdSendMessage)
		return false
	}
	// 双重桥接时内层仍是 Send Message 响应
	if entry.Bridged > 1 && inner.Cmd == ipmi.CmdSendMessage && len(inner.Data) > 0 {
		if deeper, err := inner.Embedded(); err == nil {
			inner = deeper
		}
	}
	if inner.Cmd != entry.Cmd {
		s.Logger.Debug("内嵌响应命令不匹配",
			logger.Uint8("expected", entry.Cmd),
			logger.Uint8("got", inner.Cmd))
		return false
	}
	*result = inner.ToResponse()
	return true
}

// DeviceID Get Device ID 响应
type DeviceID struct {
	DeviceID          uint8
	DeviceRevision    uint8
	FirmwareMajor     uint8
	FirmwareMinor     uint8
	IPMIVersion       uint8
	ManufacturerID    uint32
	ProductID         uint16
	ProvidesSDRs      bool
	DeviceAvailable   bool
	AdditionalSupport uint8
}

func (d *DeviceID) String() string {
	return fmt.Sprintf("device=0x%02x rev=%d fw=%d.%02x ipmi=%d.%d mfg=%d product=0x%04x",
		d.DeviceID, d.DeviceRevision, d.FirmwareMajor, d.FirmwareMinor,
		d.IPMIVersion&0x0F, d.IPMIVersion>>4, d.ManufacturerID, d.ProductID)
}

// GetDeviceID 发送 Get Device ID
func (s *Session) GetDeviceID(ctx context.Context) (*DeviceID, error) {
	rsp, err := s.SendCommand(ctx, &ipmi.Request{NetFn: ipmi.NetFnApp, Cmd: ipmi.CmdGetDeviceID})
	if err != nil {
		return nil, err
	}
	if err := rsp.Err(); err != nil {
		return nil, err
	}
	d := rsp.Data
	if len(d) < 11 {
		return nil, fmt.Errorf("%w: Get Device ID 响应 %d 字节", ipmi.ErrTruncatedPacket, len(d))
	}
	return &DeviceID{
		DeviceID:          d[0],
		DeviceRevision:    d[1] & 0x0F,
		ProvidesSDRs:      d[1]&0x80 != 0,
		FirmwareMajor:     d[2] & 0x7F,
		DeviceAvailable:   d[2]&0x80 == 0,
		FirmwareMinor:     d[3],
		IPMIVersion:       d[4],
		AdditionalSupport: d[5],
		ManufacturerID:    uint32(d[6]) | uint32(d[7])<<8 | uint32(d[8]&0x0F)<<16,
		ProductID:         binary.LittleEndian.Uint16(d[9:11]),
	}, nil
}

// SetSessionPrivilegeLevel 设置会话特权级别, 返回 BMC 确认的级别
func (s *Session) SetSessionPrivilegeLevel(ctx context.Context, priv ipmi.PrivilegeLevel) (ipmi.PrivilegeLevel, error) {
	if s.state != StateActive {
		return 0, ErrNotActive
	}
	rsp, err := s.sendCommand(ctx, &ipmi.Request{
		NetFn: ipmi.NetFnApp,
		Cmd:   ipmi.CmdSetSessionPrivilegeLevel,
		Data:  []byte{uint8(priv)},
	}, nil)
	if err != nil {
		return 0, err
	}
	if err := rsp.Err(); err != nil {
		return 0, err
	}
	if len(rsp.Data) < 1 {
		return 0, fmt.Errorf("%w: Set Session Privilege Level 响应为空", ipmi.ErrTruncatedPacket)
	}
	got := ipmi.PrivilegeLevel(rsp.Data[0] & 0x0F)
	s.Logger.Debug("会话特权级别已设置", logger.Stringer("privilege", got))
	return got, nil
}

// closeSession 发送 Close Session
func (s *Session) closeSession(ctx context.Context) error {
	rsp, err := s.sendCommand(ctx, &ipmi.Request{
		NetFn: ipmi.NetFnApp,
		Cmd:   ipmi.CmdCloseSession,
		Data:  le32(s.BMCID),
	}, nil)
	if err != nil {
		return err
	}
	return rsp.Err()
}
