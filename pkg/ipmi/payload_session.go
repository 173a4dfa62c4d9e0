package ipmi

import (
	"encoding/binary"
	"fmt"
)

const (
	openSessionRequestLen  = 32
	openSessionResponseLen = 36
	openSessionErrorLen    = 8

	algTypeAuth      = 0x00
	algTypeIntegrity = 0x01
	algTypeCrypt     = 0x02
	algPayloadLen    = 0x08
)

// OpenSessionRequest RMCP+ Open Session Request (IPMI v2.0 13.17)
type OpenSessionRequest struct {
	MessageTag       uint8
	MaxPrivilege     PrivilegeLevel
	ConsoleSessionID uint32
	Suite            CipherSuite
}

func (p *OpenSessionRequest) Type() PayloadType { return PayloadOpenSessionRequest }
func (p *OpenSessionRequest) isPayload()        {}

func (p *OpenSessionRequest) Encode() ([]byte, error) {
	buf := make([]byte, openSessionRequestLen)
	buf[0] = p.MessageTag
	buf[1] = uint8(p.MaxPrivilege)
	binary.LittleEndian.PutUint32(buf[4:8], p.ConsoleSessionID)
	putAlgorithm(buf[8:16], algTypeAuth, uint8(p.Suite.Auth))
	putAlgorithm(buf[16:24], algTypeIntegrity, uint8(p.Suite.Integrity))
	putAlgorithm(buf[24:32], algTypeCrypt, uint8(p.Suite.Crypt))
	return buf, nil
}

func putAlgorithm(b []byte, typ, alg uint8) {
	b[0] = typ
	b[3] = algPayloadLen
	b[4] = alg & 0x3F
}

func DecodeOpenSessionRequest(data []byte) (*OpenSessionRequest, error) {
	if len(data) < openSessionRequestLen {
		return nil, fmt.Errorf("%w: Open Session Request 需要 %d 字节", ErrTruncatedPacket, openSessionRequestLen)
	}
	return &OpenSessionRequest{
		MessageTag:       data[0],
		MaxPrivilege:     PrivilegeLevel(data[1] & 0x0F),
		ConsoleSessionID: binary.LittleEndian.Uint32(data[4:8]),
		Suite: CipherSuite{
			Auth:      AuthAlgorithm(data[12] & 0x3F),
			Integrity: IntegrityAlgorithm(data[20] & 0x3F),
			Crypt:     CryptAlgorithm(data[28] & 0x3F),
		},
	}, nil
}

// OpenSessionResponse 状态非零时只有前 8 字节有效
type OpenSessionResponse struct {
	MessageTag       uint8
	Status           RakpStatus
	MaxPrivilege     PrivilegeLevel
	ConsoleSessionID uint32
	BMCSessionID     uint32
	Suite            CipherSuite
}

func (p *OpenSessionResponse) Type() PayloadType { return PayloadOpenSessionResponse }
func (p *OpenSessionResponse) isPayload()        {}

func (p *OpenSessionResponse) Encode() ([]byte, error) {
	n := openSessionResponseLen
	if p.Status != RakpStatusNoErrors {
		n = openSessionErrorLen
	}
	buf := make([]byte, n)
	buf[0] = p.MessageTag
	buf[1] = uint8(p.Status)
	buf[2] = uint8(p.MaxPrivilege)
	binary.LittleEndian.PutUint32(buf[4:8], p.ConsoleSessionID)
	if p.Status != RakpStatusNoErrors {
		return buf, nil
	}
	binary.LittleEndian.PutUint32(buf[8:12], p.BMCSessionID)
	putAlgorithm(buf[12:20], algTypeAuth, uint8(p.Suite.Auth))
	putAlgorithm(buf[20:28], algTypeIntegrity, uint8(p.Suite.Integrity))
	putAlgorithm(buf[28:36], algTypeCrypt, uint8(p.Suite.Crypt))
	return buf, nil
}

func DecodeOpenSessionResponse(data []byte) (*OpenSessionResponse, error) {
	if len(data) < openSessionErrorLen {
		return nil, fmt.Errorf("%w: Open Session Response 需要至少 %d 字节", ErrTruncatedPacket, openSessionErrorLen)
	}
	p := &OpenSessionResponse{
		MessageTag:       data[0],
		Status:           RakpStatus(data[1]),
		MaxPrivilege:     PrivilegeLevel(data[2] & 0x0F),
		ConsoleSessionID: binary.LittleEndian.Uint32(data[4:8]),
	}
	if p.Status != RakpStatusNoErrors {
		return p, nil
	}
	if len(data) < openSessionResponseLen {
		return nil, fmt.Errorf("%w: Open Session Response 需要 %d 字节", ErrTruncatedPacket, openSessionResponseLen)
	}
	p.BMCSessionID = binary.LittleEndian.Uint32(data[8:12])
	p.Suite = CipherSuite{
		Auth:      AuthAlgorithm(data[16] & 0x3F),
		Integrity: IntegrityAlgorithm(data[24] & 0x3F),
		Crypt:     CryptAlgorithm(data[32] & 0x3F),
	}
	return p, nil
}
