package ipmi

import (
	"encoding/binary"
	"fmt"
)

const (
	rakp1HeaderLen = 28
	rakp2HeaderLen = 40
	rakpStatusLen  = 8
	MaxUsernameLen = 16
	RandomLen      = 16
)

// RAKP1 (IPMI v2.0 13.20)
type RAKP1 struct {
	MessageTag    uint8
	BMCSessionID  uint32
	ConsoleRandom [RandomLen]byte
	RequestedRole uint8 // 特权级别 | RoleNameOnlyLookup
	Username      []byte
}

func (p *RAKP1) Type() PayloadType { return PayloadRAKP1 }
func (p *RAKP1) isPayload()        {}

func (p *RAKP1) Encode() ([]byte, error) {
	if len(p.Username) > MaxUsernameLen {
		return nil, fmt.Errorf("用户名过长: %d 字节 (最多 %d)", len(p.Username), MaxUsernameLen)
	}
	buf := make([]byte, rakp1HeaderLen+len(p.Username))
	buf[0] = p.MessageTag
	binary.LittleEndian.PutUint32(buf[4:8], p.BMCSessionID)
	copy(buf[8:24], p.ConsoleRandom[:])
	buf[24] = p.RequestedRole
	buf[27] = uint8(len(p.Username))
	copy(buf[28:], p.Username)
	return buf, nil
}

func DecodeRAKP1(data []byte) (*RAKP1, error) {
	if len(data) < rakp1HeaderLen {
		return nil, fmt.Errorf("%w: RAKP1 需要至少 %d 字节", ErrTruncatedPacket, rakp1HeaderLen)
	}
	n := int(data[27])
	if n > MaxUsernameLen || len(data) < rakp1HeaderLen+n {
		return nil, fmt.Errorf("%w: RAKP1 用户名长度 %d", ErrTruncatedPacket, n)
	}
	p := &RAKP1{
		MessageTag:    data[0],
		BMCSessionID:  binary.LittleEndian.Uint32(data[4:8]),
		RequestedRole: data[24],
		Username:      append([]byte{}, data[28:28+n]...),
	}
	copy(p.ConsoleRandom[:], data[8:24])
	return p, nil
}

// RAKP2 状态非零时只有前 8 字节有效
type RAKP2 struct {
	MessageTag       uint8
	Status           RakpStatus
	ConsoleSessionID uint32
	BMCRandom        [RandomLen]byte
	BMCGUID          GUID
	AuthCode         []byte // 长度取决于认证算法
}

func (p *RAKP2) Type() PayloadType { return PayloadRAKP2 }
func (p *RAKP2) isPayload()        {}

func (p *RAKP2) Encode() ([]byte, error) {
	if p.Status != RakpStatusNoErrors {
		buf := make([]byte, rakpStatusLen)
		buf[0] = p.MessageTag
		buf[1] = uint8(p.Status)
		binary.LittleEndian.PutUint32(buf[4:8], p.ConsoleSessionID)
		return buf, nil
	}
	buf := make([]byte, rakp2HeaderLen, rakp2HeaderLen+len(p.AuthCode))
	buf[0] = p.MessageTag
	binary.LittleEndian.PutUint32(buf[4:8], p.ConsoleSessionID)
	copy(buf[8:24], p.BMCRandom[:])
	copy(buf[24:40], p.BMCGUID[:])
	return append(buf, p.AuthCode...), nil
}

func DecodeRAKP2(data []byte) (*RAKP2, error) {
	if len(data) < rakpStatusLen {
		return nil, fmt.Errorf("%w: RAKP2 需要至少 %d 字节", ErrTruncatedPacket, rakpStatusLen)
	}
	p := &RAKP2{
		MessageTag:       data[0],
		Status:           RakpStatus(data[1]),
		ConsoleSessionID: binary.LittleEndian.Uint32(data[4:8]),
	}
	if p.Status != RakpStatusNoErrors {
		return p, nil
	}
	if len(data) < rakp2HeaderLen {
		return nil, fmt.Errorf("%w: RAKP2 需要至少 %d 字节", ErrTruncatedPacket, rakp2HeaderLen)
	}
	copy(p.BMCRandom[:], data[8:24])
	copy(p.BMCGUID[:], data[24:40])
	p.AuthCode = append([]byte{}, data[40:]...)
	return p, nil
}

// RAKP3 仅在状态为成功时携带认证码
type RAKP3 struct {
	MessageTag   uint8
	Status       RakpStatus
	BMCSessionID uint32
	AuthCode     []byte
}

func (p *RAKP3) Type() PayloadType { return PayloadRAKP3 }
func (p *RAKP3) isPayload()        {}

func (p *RAKP3) Encode() ([]byte, error) {
	buf := make([]byte, rakpStatusLen, rakpStatusLen+len(p.AuthCode))
	buf[0] = p.MessageTag
	buf[1] = uint8(p.Status)
	binary.LittleEndian.PutUint32(buf[4:8], p.BMCSessionID)
	if p.Status != RakpStatusNoErrors {
		return buf, nil
	}
	return append(buf, p.AuthCode...), nil
}

func DecodeRAKP3(data []byte) (*RAKP3, error) {
	if len(data) < rakpStatusLen {
		return nil, fmt.Errorf("%w: RAKP3 需要至少 %d 字节", ErrTruncatedPacket, rakpStatusLen)
	}
	p := &RAKP3{
		MessageTag:   data[0],
		Status:       RakpStatus(data[1]),
		BMCSessionID: binary.LittleEndian.Uint32(data[4:8]),
	}
	if p.Status == RakpStatusNoErrors {
		p.AuthCode = append([]byte{}, data[rakpStatusLen:]...)
	}
	return p, nil
}

// RAKP4 ICV 长度取决于认证算法
type RAKP4 struct {
	MessageTag          uint8
	Status              RakpStatus
	ConsoleSessionID    uint32
	IntegrityCheckValue []byte
}

func (p *RAKP4) Type() PayloadType { return PayloadRAKP4 }
func (p *RAKP4) isPayload()        {}

func (p *RAKP4) Encode() ([]byte, error) {
	buf := make([]byte, rakpStatusLen, rakpStatusLen+len(p.IntegrityCheckValue))
	buf[0] = p.MessageTag
	buf[1] = uint8(p.Status)
	binary.LittleEndian.PutUint32(buf[4:8], p.ConsoleSessionID)
	if p.Status != RakpStatusNoErrors {
		return buf, nil
	}
	return append(buf, p.IntegrityCheckValue...), nil
}

func DecodeRAKP4(data []byte) (*RAKP4, error) {
	if len(data) < rakpStatusLen {
		return nil, fmt.Errorf("%w: RAKP4 需要至少 %d 字节", ErrTruncatedPacket, rakpStatusLen)
	}
	p := &RAKP4{
		MessageTag:       data[0],
		Status:           RakpStatus(data[1]),
		ConsoleSessionID: binary.LittleEndian.Uint32(data[4:8]),
	}
	if p.Status == RakpStatusNoErrors {
		p.IntegrityCheckValue = append([]byte{}, data[rakpStatusLen:]...)
	}
	return p, nil
}
