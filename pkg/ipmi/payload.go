package ipmi

import "fmt"

// Payload RMCP+ 会话载荷的封闭变体集合
type Payload interface {
	Type() PayloadType
	Encode() ([]byte, error)
	isPayload()
}

// Direction 报文方向, 同一载荷类型在两个方向上的结构不同
type Direction uint8

const (
	ToBMC Direction = iota
	FromBMC
)

// DecodePayload 按载荷类型与方向解析明文载荷
func DecodePayload(t PayloadType, body []byte, dir Direction) (Payload, error) {
	switch {
	case t == PayloadSOL:
		return DecodeSolPacket(body)
	case t == PayloadIPMI && dir == ToBMC:
		return DecodeIpmiRequest(body)
	case t == PayloadIPMI && dir == FromBMC:
		return DecodeIpmiResponse(body)
	case t == PayloadOpenSessionRequest && dir == ToBMC:
		return DecodeOpenSessionRequest(body)
	case t == PayloadOpenSessionResponse && dir == FromBMC:
		return DecodeOpenSessionResponse(body)
	case t == PayloadRAKP1 && dir == ToBMC:
		return DecodeRAKP1(body)
	case t == PayloadRAKP2 && dir == FromBMC:
		return DecodeRAKP2(body)
	case t == PayloadRAKP3 && dir == ToBMC:
		return DecodeRAKP3(body)
	case t == PayloadRAKP4 && dir == FromBMC:
		return DecodeRAKP4(body)
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedPayloadType, t)
}
