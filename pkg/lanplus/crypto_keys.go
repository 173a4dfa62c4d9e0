package lanplus

import (
	"bytes"
	"encoding/binary"
	"errors"

	"github.com/iniwex5/lanplus-go/pkg/crypto"
	"github.com/iniwex5/lanplus-go/pkg/ipmi"
)

func le32(v uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, v)
	return b
}

// roleAndName ROLEm | ULENm | UNAMEm
func (s *Session) roleAndName() []byte {
	name := []byte(s.cfg.Username)
	return append([]byte{s.role, uint8(len(name))}, name...)
}

// rakp2AuthCode BMC 应在 RAKP2 中给出的认证码:
// HMAC_Kuid(SIDm | SIDc | Rm | Rc | GUIDc | ROLEm | ULENm | UNAMEm)
func (s *Session) rakp2AuthCode() []byte {
	return crypto.Keyed(s.authAlg, s.passwordKey,
		le32(s.ConsoleID), le32(s.BMCID),
		s.consoleRand[:], s.bmcRand[:], s.bmcGUID[:],
		s.roleAndName())
}

// rakp3AuthCode HMAC_Kuid(Rc | SIDm | ROLEm | ULENm | UNAMEm)
func (s *Session) rakp3AuthCode() []byte {
	return crypto.Keyed(s.authAlg, s.passwordKey,
		s.bmcRand[:], le32(s.ConsoleID), s.roleAndName())
}

// rakp4ICV HMAC_SIK(Rm | SIDc | GUIDc), 截断到算法的 ICV 长度
func (s *Session) rakp4ICV() []byte {
	icv := crypto.Keyed(s.authAlg, s.sik, s.consoleRand[:], le32(s.BMCID), s.bmcGUID[:])
	if n := s.authAlg.ICVLen(); len(icv) > n {
		icv = icv[:n]
	}
	return icv
}

// kConstLen K1/K2 派生常量长度: SHA-256 为 32 字节, 其余 20 字节
func (s *Session) kConstLen() int {
	if s.suite.Auth == ipmi.RAKP_HMAC_SHA256 {
		return 32
	}
	return 20
}

// generateSessionKeys 计算 SIK, K1, K2
// SIK = HMAC_KG(Rm | Rc | ROLEm | ULENm | UNAMEm), 未配置 Kg 时使用 Kuid
// K1 = HMAC_SIK(0x01 * n), K2 = HMAC_SIK(0x02 * n)
func (s *Session) generateSessionKeys() error {
	if s.authAlg == nil {
		return errors.New("认证算法未设置")
	}
	if s.authAlg.KeyLen() == 0 {
		s.sik, s.k1, s.k2 = nil, nil, nil
		return nil
	}

	kg := s.passwordKey
	if len(s.cfg.Kg) > 0 {
		kg = crypto.PadKey(s.cfg.Kg, maxPasswordLen)
	}
	s.sik = crypto.Keyed(s.authAlg, kg, s.consoleRand[:], s.bmcRand[:], s.roleAndName())

	n := s.kConstLen()
	s.k1 = crypto.Keyed(s.authAlg, s.sik, bytes.Repeat([]byte{0x01}, n))
	s.k2 = crypto.Keyed(s.authAlg, s.sik, bytes.Repeat([]byte{0x02}, n))
	return nil
}
