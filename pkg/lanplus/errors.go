package lanplus

import (
	"errors"
	"fmt"

	"github.com/iniwex5/lanplus-go/pkg/ipmi"
)

var (
	// ErrNoResponse 重传次数耗尽仍未收到匹配的响应
	ErrNoResponse = errors.New("BMC 无响应")
	// ErrSessionAborted 会话激活后收到会话 ID 不符的报文, 会话已被重置
	ErrSessionAborted = errors.New("会话 ID 不匹配, 会话已中止")
	ErrRakp2Integrity = errors.New("RAKP2 认证码校验失败")
	ErrRakp4Integrity = errors.New("RAKP4 完整性校验值校验失败")
	ErrV2Unsupported  = errors.New("BMC 不支持 IPMI v2.0 / RMCP+")
	ErrNotActive      = errors.New("会话未激活")
	ErrTrackerFull    = errors.New("64 个请求序号均在使用中")
)

// NegotiationError BMC 在 Open Session Response 中返回了与请求不同的算法
type NegotiationError struct {
	Requested  ipmi.CipherSuite
	Negotiated ipmi.CipherSuite
}

func (e *NegotiationError) Error() string {
	return fmt.Sprintf("算法协商不一致: 请求 [%s], BMC 返回 [%s]", e.Requested, e.Negotiated)
}

// RakpStatusError BMC 在会话建立消息中返回了非零状态
type RakpStatusError struct {
	Stage  ipmi.PayloadType
	Status ipmi.RakpStatus
}

func (e *RakpStatusError) Error() string {
	return fmt.Sprintf("%s 返回错误状态 0x%02x: %s", e.Stage, uint8(e.Status), e.Status)
}

// handshakeResult 握手计数器的结果标签
func handshakeResult(err error) string {
	var negErr *NegotiationError
	var rakpErr *RakpStatusError
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, ErrNoResponse):
		return "no_response"
	case errors.As(err, &negErr):
		return "negotiation"
	case errors.As(err, &rakpErr):
		return "rakp_status"
	case errors.Is(err, ErrRakp2Integrity), errors.Is(err, ErrRakp4Integrity):
		return "integrity"
	case errors.Is(err, ErrV2Unsupported):
		return "unsupported"
	}
	return "error"
}
