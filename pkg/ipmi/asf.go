package ipmi

import (
	"errors"
	"fmt"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
)

// Presence Pong 数据 (ASF 2.0 3.2.4.3) 中的能力位
const (
	pongEntitiesIPMI        = 0x80
	pongInteractionsRMCPSec = 0x20
	pongDataLen             = 16
)

// PresencePong 探测结果
type PresencePong struct {
	Tag                uint8
	IANA               uint32
	IPMI               bool
	SecurityExtensions bool // RMCP+ (IPMI v2.0) 可用
}

// BuildPresencePing 构造 ASF Presence Ping
func BuildPresencePing(tag uint8) ([]byte, error) {
	buf := gopacket.NewSerializeBuffer()
	rmcp := &layers.RMCP{
		Version:  RMCP_VERSION_1,
		Sequence: RMCP_SEQ_NO_ACK,
		Class:    layers.RMCPClassASF,
	}
	asf := &layers.ASF{
		ASFDataIdentifier: layers.ASFDataIdentifierPresencePing,
		Tag:               tag,
	}
	if err := gopacket.SerializeLayers(buf, gopacket.SerializeOptions{FixLengths: true}, rmcp, asf); err != nil {
		return nil, fmt.Errorf("序列化 Presence Ping 失败: %w", err)
	}
	return buf.Bytes(), nil
}

// ParsePresencePong 解析 ASF Presence Pong
func ParsePresencePong(data []byte) (*PresencePong, error) {
	pkt := gopacket.NewPacket(data, layers.LayerTypeRMCP, gopacket.Default)
	asfLayer, ok := pkt.Layer(layers.LayerTypeASF).(*layers.ASF)
	if !ok {
		return nil, errors.New("不是 ASF 报文")
	}
	if asfLayer.ASFDataIdentifier != layers.ASFDataIdentifierPresencePong {
		return nil, fmt.Errorf("不是 Presence Pong: type=0x%02x", asfLayer.Type)
	}
	pongLayer := pkt.Layer(layers.LayerTypeASFPresencePong)
	if pongLayer == nil || len(pongLayer.LayerContents()) < pongDataLen {
		return nil, fmt.Errorf("%w: Presence Pong 数据不完整", ErrTruncatedPacket)
	}
	body := pongLayer.LayerContents()
	return &PresencePong{
		Tag:                asfLayer.Tag,
		IANA:               uint32(body[0])<<24 | uint32(body[1])<<16 | uint32(body[2])<<8 | uint32(body[3]),
		IPMI:               body[8]&pongEntitiesIPMI != 0,
		SecurityExtensions: body[9]&pongInteractionsRMCPSec != 0,
	}, nil
}
