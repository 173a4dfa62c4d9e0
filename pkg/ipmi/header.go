package ipmi

import (
	"encoding/binary"
	"fmt"
)

// RMCP 头部 (IPMI v2.0 13.1.3)
type RMCPHeader struct {
	Version  uint8
	Reserved uint8
	Sequence uint8
	Class    uint8
}

func (h *RMCPHeader) Encode() []byte {
	return []byte{h.Version, h.Reserved, h.Sequence, h.Class}
}

func DecodeRMCPHeader(data []byte) (*RMCPHeader, error) {
	if len(data) < RMCP_HEADER_LEN {
		return nil, fmt.Errorf("%w: RMCP 头部需要 %d 字节", ErrTruncatedPacket, RMCP_HEADER_LEN)
	}
	return &RMCPHeader{
		Version:  data[0],
		Reserved: data[1],
		Sequence: data[2],
		Class:    data[3],
	}, nil
}

func ipmiRMCPHeader() *RMCPHeader {
	return &RMCPHeader{Version: RMCP_VERSION_1, Sequence: RMCP_SEQ_NO_ACK, Class: RMCP_CLASS_IPMI}
}

// IPMI v2.0 会话头部, 多字节字段均为小端
type SessionHeader struct {
	AuthType      uint8
	PayloadType   PayloadType
	Encrypted     bool
	Authenticated bool
	SessionID     uint32
	Sequence      uint32
	PayloadLength uint16
}

func (h *SessionHeader) Encode() []byte {
	buf := make([]byte, SESSION_HDR_LEN)
	buf[0] = h.AuthType
	buf[1] = uint8(h.PayloadType) & payloadTypeMask
	if h.Encrypted {
		buf[1] |= PayloadFlagEncrypted
	}
	if h.Authenticated {
		buf[1] |= PayloadFlagAuthenticated
	}
	binary.LittleEndian.PutUint32(buf[2:6], h.SessionID)
	binary.LittleEndian.PutUint32(buf[6:10], h.Sequence)
	binary.LittleEndian.PutUint16(buf[10:12], h.PayloadLength)
	return buf
}

func DecodeSessionHeader(data []byte) (*SessionHeader, error) {
	if len(data) < SESSION_HDR_LEN {
		return nil, fmt.Errorf("%w: 会话头部需要 %d 字节", ErrTruncatedPacket, SESSION_HDR_LEN)
	}
	return &SessionHeader{
		AuthType:      data[0],
		PayloadType:   PayloadType(data[1] & payloadTypeMask),
		Encrypted:     data[1]&PayloadFlagEncrypted != 0,
		Authenticated: data[1]&PayloadFlagAuthenticated != 0,
		SessionID:     binary.LittleEndian.Uint32(data[2:6]),
		Sequence:      binary.LittleEndian.Uint32(data[6:10]),
		PayloadLength: binary.LittleEndian.Uint16(data[10:12]),
	}, nil
}

func (h *SessionHeader) String() string {
	return fmt.Sprintf("Session Header: auth=0x%02x type=%s enc=%v auth=%v id=0x%08x seq=%d len=%d",
		h.AuthType, h.PayloadType, h.Encrypted, h.Authenticated, h.SessionID, h.Sequence, h.PayloadLength)
}

// Checksum IPMI 二进制补码校验和
func Checksum(data []byte) uint8 {
	var sum uint8
	for _, b := range data {
		sum += b
	}
	return -sum
}
