package lanplus

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/iniwex5/lanplus-go/pkg/crypto"
	"github.com/iniwex5/lanplus-go/pkg/ipmi"
	"github.com/iniwex5/lanplus-go/pkg/logger"
	"github.com/iniwex5/lanplus-go/pkg/metrics"
)

// presencePing ASF Presence Ping 探测; 无响应时只记录警告
func (s *Session) presencePing(ctx context.Context) error {
	tag := s.nextTag()
	ping, err := ipmi.BuildPresencePing(tag)
	if err != nil {
		return err
	}

	var pong *ipmi.PresencePong
	err = s.sendRecv(ctx, ping, func(raw []byte) (bool, error) {
		p, err := ipmi.ParsePresencePong(raw)
		if err != nil || p.Tag != tag {
			s.metrics.Dropped(metrics.DropUnmatched)
			return false, nil
		}
		pong = p
		return true, nil
	})
	if errors.Is(err, ErrNoResponse) {
		s.Logger.Warn("Presence Ping 无响应, 继续建立会话")
		return nil
	}
	if err != nil {
		return err
	}
	if !pong.IPMI || !pong.SecurityExtensions {
		return fmt.Errorf("%w: Presence Pong ipmi=%v rmcp+=%v", ErrV2Unsupported, pong.IPMI, pong.SecurityExtensions)
	}
	return nil
}

// getChannelAuthCapabilities 会话外发送 Get Channel Authentication Capabilities, 确认 BMC 支持 IPMI v2.0
func (s *Session) getChannelAuthCapabilities(ctx context.Context) error {
	req := &ipmi.Request{
		NetFn: ipmi.NetFnApp,
		Cmd:   ipmi.CmdGetChannelAuthCapabilities,
		Data:  []byte{ipmi.ChannelAuthCapsV2Current, uint8(s.cfg.Privilege)},
	}
	rsp, err := s.sendCommand(ctx, req, nil)
	if err != nil {
		return err
	}
	if err := rsp.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrV2Unsupported, err)
	}
	if len(rsp.Data) < 4 {
		return fmt.Errorf("%w: 认证能力响应过短", ipmi.ErrTruncatedPacket)
	}
	if rsp.Data[1]&0x80 == 0 || rsp.Data[3]&0x02 == 0 {
		return ErrV2Unsupported
	}
	s.Logger.Debug("BMC 支持 IPMI v2.0", logger.Uint8("channel", rsp.Data[0]))
	return nil
}

func randomSessionID() (uint32, error) {
	for {
		b, err := crypto.RandomBytes(4)
		if err != nil {
			return 0, err
		}
		if id := binary.LittleEndian.Uint32(b); id != 0 {
			return id, nil
		}
	}
}

// openSession 发送 Open Session Request 并处理响应
func (s *Session) openSession(ctx context.Context) error {
	suite, err := ipmi.ResolveCipherSuite(s.cfg.CipherSuite)
	if err != nil {
		return err
	}
	s.requested = suite
	if s.ConsoleID, err = randomSessionID(); err != nil {
		return err
	}

	// 管理员级别请求 "与算法匹配的最高级别", 其余按配置
	priv := s.cfg.Privilege
	if priv == ipmi.PrivilegeAdmin {
		priv = ipmi.PrivilegeHighest
	}
	tag := s.nextTag()
	pkt, err := s.wrap(&ipmi.OpenSessionRequest{
		MessageTag:       tag,
		MaxPrivilege:     priv,
		ConsoleSessionID: s.ConsoleID,
		Suite:            suite,
	})
	if err != nil {
		return err
	}

	var rsp *ipmi.OpenSessionResponse
	err = s.sendRecv(ctx, pkt, s.matchPayload(func(in *inbound) (bool, error) {
		r, ok := in.payload.(*ipmi.OpenSessionResponse)
		if !ok || r.MessageTag != tag {
			return false, nil
		}
		rsp = r
		return true, nil
	}))
	if err != nil {
		return err
	}

	if rsp.Status != ipmi.RakpStatusNoErrors {
		return &RakpStatusError{Stage: ipmi.PayloadOpenSessionResponse, Status: rsp.Status}
	}
	if rsp.ConsoleSessionID != s.ConsoleID {
		return &RakpStatusError{Stage: ipmi.PayloadOpenSessionResponse, Status: ipmi.RakpStatusInvalidSessionID}
	}

	s.state = StateOpenSessionReceived
	s.BMCID = rsp.BMCSessionID
	s.maxPriv = rsp.MaxPrivilege
	s.suite = rsp.Suite
	if rsp.Suite != suite {
		return &NegotiationError{Requested: suite, Negotiated: rsp.Suite}
	}

	if s.authAlg, err = crypto.GetAuthAlgorithm(uint8(suite.Auth)); err != nil {
		return err
	}
	if s.integAlg, err = crypto.GetIntegrityAlgorithm(uint8(suite.Integrity)); err != nil {
		return err
	}
	if s.cryptAlg, err = crypto.GetEncrypter(uint8(suite.Crypt)); err != nil {
		return err
	}
	s.Logger.Debug("Open Session 完成",
		logger.Uint32("consoleSessionID", s.ConsoleID),
		logger.Uint32("bmcSessionID", s.BMCID),
		logger.Stringer("maxPrivilege", s.maxPriv))
	return nil
}
