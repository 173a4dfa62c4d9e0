package ipmi

import (
	"errors"
	"fmt"
)

// MACFunc 计算会话尾部 AuthCode, 输入为 authtype 到 next header 的全部字节
type MACFunc func(data []byte) []byte

// Seal 组装完整报文:
// RMCP 头 | 会话头 | 载荷 | [完整性填充 0xFF.. | 填充长度 | 下一头部 0x07 | AuthCode]
// mac 为 nil 时不附加会话尾部. body 应为已经加密 (如需) 的载荷字节.
func Seal(h *SessionHeader, body []byte, mac MACFunc) ([]byte, error) {
	if len(body) > 0xFFFF {
		return nil, fmt.Errorf("载荷过长: %d", len(body))
	}
	h.PayloadLength = uint16(len(body))
	h.Authenticated = mac != nil

	buf := make([]byte, 0, RMCP_HEADER_LEN+SESSION_HDR_LEN+len(body)+4+32)
	buf = append(buf, ipmiRMCPHeader().Encode()...)
	buf = append(buf, h.Encode()...)
	buf = append(buf, body...)
	if mac == nil {
		return buf, nil
	}

	pad := IntegrityPadLen(len(body))
	for i := 0; i < pad; i++ {
		buf = append(buf, 0xFF)
	}
	buf = append(buf, byte(pad), NEXT_HEADER_RMCP)
	buf = append(buf, mac(buf[RMCP_HEADER_LEN:])...)
	return buf, nil
}

// IntegrityPadLen 使 (会话头 + 载荷 + 2) 对齐到 4 字节所需的填充
func IntegrityPadLen(bodyLen int) int {
	return (4 - (SESSION_HDR_LEN+bodyLen+2)%4) % 4
}

// Frame 报文外层解析结果, Body 可能仍是密文
type Frame struct {
	RMCP     RMCPHeader
	Session  SessionHeader
	Body     []byte
	Signed   []byte // 参与 AuthCode 计算的区域
	AuthCode []byte
}

var errNotIPMIClass = errors.New("非 IPMI 类 RMCP 报文")

// IsNotIPMIClass 判断是否为 ASF 等其他 RMCP 类报文
func IsNotIPMIClass(err error) bool {
	return errors.Is(err, errNotIPMIClass)
}

// ParseFrame 解析 RMCP 头、会话头与会话尾部. authCodeLen 为协商后的 AuthCode 长度,
// 报文带认证标志时必须为正.
func ParseFrame(data []byte, authCodeLen int) (*Frame, error) {
	rmcp, err := DecodeRMCPHeader(data)
	if err != nil {
		return nil, err
	}
	if rmcp.Class != RMCP_CLASS_IPMI {
		return nil, fmt.Errorf("%w: class=0x%02x", errNotIPMIClass, rmcp.Class)
	}
	sh, err := DecodeSessionHeader(data[RMCP_HEADER_LEN:])
	if err != nil {
		return nil, err
	}
	if sh.AuthType != AUTHTYPE_RMCPP {
		return nil, fmt.Errorf("%w: 认证类型 0x%02x", ErrUnsupportedPayloadType, sh.AuthType)
	}

	bodyStart := RMCP_HEADER_LEN + SESSION_HDR_LEN
	bodyEnd := bodyStart + int(sh.PayloadLength)
	if bodyEnd > len(data) {
		return nil, fmt.Errorf("%w: 载荷长度 %d 超出报文 %d", ErrTruncatedPacket, sh.PayloadLength, len(data)-bodyStart)
	}
	f := &Frame{RMCP: *rmcp, Session: *sh, Body: data[bodyStart:bodyEnd]}
	if !sh.Authenticated {
		return f, nil
	}

	if authCodeLen <= 0 {
		return nil, fmt.Errorf("%w: 报文带认证标志但会话未协商完整性算法", ErrIntegrity)
	}
	if len(data) < bodyEnd+2+authCodeLen {
		return nil, fmt.Errorf("%w: 会话尾部不完整", ErrTruncatedPacket)
	}
	trailerEnd := len(data) - authCodeLen
	padLen := int(data[trailerEnd-2])
	if data[trailerEnd-1] != NEXT_HEADER_RMCP {
		return nil, fmt.Errorf("%w: 下一头部 0x%02x", ErrIntegrity, data[trailerEnd-1])
	}
	if bodyEnd+padLen+2 != trailerEnd {
		return nil, fmt.Errorf("%w: 填充长度 %d 与报文不符", ErrIntegrity, padLen)
	}
	f.Signed = data[RMCP_HEADER_LEN:trailerEnd]
	f.AuthCode = data[trailerEnd:]
	return f, nil
}

// EncodeUnprotected 编码会话建立前 (会话 ID 与序号为 0) 的明文报文
func EncodeUnprotected(p Payload) ([]byte, error) {
	body, err := p.Encode()
	if err != nil {
		return nil, err
	}
	return Seal(&SessionHeader{AuthType: AUTHTYPE_RMCPP, PayloadType: p.Type()}, body, nil)
}
