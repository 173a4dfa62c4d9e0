package lanplus

import (
	"context"
	"crypto/hmac"

	"github.com/iniwex5/lanplus-go/pkg/crypto"
	"github.com/iniwex5/lanplus-go/pkg/ipmi"
	"github.com/iniwex5/lanplus-go/pkg/logger"
)

// rakp12 发送 RAKP1, 校验 RAKP2 并派生会话密钥.
// RAKP2 失败时通过 RAKP3 将状态告知 BMC 后返回错误.
func (s *Session) rakp12(ctx context.Context) error {
	rm, err := crypto.RandomBytes(ipmi.RandomLen)
	if err != nil {
		return err
	}
	copy(s.consoleRand[:], rm)
	s.role = uint8(s.cfg.Privilege)
	if s.cfg.NameOnlyLookup {
		s.role |= ipmi.RoleNameOnlyLookup
	}

	tag := s.nextTag()
	pkt, err := s.wrap(&ipmi.RAKP1{
		MessageTag:    tag,
		BMCSessionID:  s.BMCID,
		ConsoleRandom: s.consoleRand,
		RequestedRole: s.role,
		Username:      []byte(s.cfg.Username),
	})
	if err != nil {
		return err
	}

	var rsp *ipmi.RAKP2
	err = s.sendRecv(ctx, pkt, s.matchPayload(func(in *inbound) (bool, error) {
		r, ok := in.payload.(*ipmi.RAKP2)
		if !ok || r.MessageTag != tag {
			return false, nil
		}
		rsp = r
		return true, nil
	}))
	if err != nil {
		return err
	}
	s.state = StateRakp2Received

	switch {
	case rsp.Status != ipmi.RakpStatusNoErrors:
		s.rakp2Status = rsp.Status
	case rsp.ConsoleSessionID != s.ConsoleID:
		s.rakp2Status = ipmi.RakpStatusInvalidSessionID
	default:
		s.bmcRand = rsp.BMCRandom
		s.bmcGUID = rsp.BMCGUID
		if !hmac.Equal(s.rakp2AuthCode(), rsp.AuthCode) {
			s.rakp2Status = ipmi.RakpStatusInvalidIntegrityCheck
		}
	}

	if s.rakp2Status != ipmi.RakpStatusNoErrors {
		s.rejectRakp2()
		if s.rakp2Status == ipmi.RakpStatusInvalidIntegrityCheck {
			return ErrRakp2Integrity
		}
		return &RakpStatusError{Stage: ipmi.PayloadRAKP2, Status: s.rakp2Status}
	}
	s.Logger.Debug("RAKP2 校验通过", logger.Stringer("bmcGUID", s.bmcGUID))
	return s.generateSessionKeys()
}

// rejectRakp2 发送带失败状态的 RAKP3, 不等待响应
func (s *Session) rejectRakp2() {
	pkt, err := s.wrap(&ipmi.RAKP3{
		MessageTag:   s.nextTag(),
		Status:       s.rakp2Status,
		BMCSessionID: s.BMCID,
	})
	if err == nil {
		err = s.sendOnly(pkt)
	}
	if err != nil {
		s.Logger.Debug("发送失败状态的 RAKP3 失败", logger.Err(err))
	}
}

// rakp34 发送 RAKP3 并校验 RAKP4, 成功后会话进入 Active
func (s *Session) rakp34(ctx context.Context) error {
	tag := s.nextTag()
	pkt, err := s.wrap(&ipmi.RAKP3{
		MessageTag:   tag,
		Status:       ipmi.RakpStatusNoErrors,
		BMCSessionID: s.BMCID,
		AuthCode:     s.rakp3AuthCode(),
	})
	if err != nil {
		return err
	}

	var rsp *ipmi.RAKP4
	err = s.sendRecv(ctx, pkt, s.matchPayload(func(in *inbound) (bool, error) {
		r, ok := in.payload.(*ipmi.RAKP4)
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
		return &RakpStatusError{Stage: ipmi.PayloadRAKP4, Status: rsp.Status}
	}
	if rsp.ConsoleSessionID != s.ConsoleID {
		return &RakpStatusError{Stage: ipmi.PayloadRAKP4, Status: ipmi.RakpStatusInvalidSessionID}
	}
	if !hmac.Equal(s.rakp4ICV(), rsp.IntegrityCheckValue) {
		return ErrRakp4Integrity
	}

	s.state = StateActive
	s.sequence = 0
	return nil
}
