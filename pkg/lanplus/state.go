package lanplus

import (
	"fmt"

	"github.com/iniwex5/lanplus-go/pkg/ipmi"
)

// SessionState 会话建立状态机
type SessionState int

const (
	StatePreSession SessionState = iota
	StateOpenSessionSent
	StateOpenSessionReceived
	StateRakp1Sent
	StateRakp2Received
	StateRakp3Sent
	StateActive
)

func (s SessionState) String() string {
	switch s {
	case StatePreSession:
		return "PreSession"
	case StateOpenSessionSent:
		return "OpenSessionSent"
	case StateOpenSessionReceived:
		return "OpenSessionReceived"
	case StateRakp1Sent:
		return "Rakp1Sent"
	case StateRakp2Received:
		return "Rakp2Received"
	case StateRakp3Sent:
		return "Rakp3Sent"
	case StateActive:
		return "Active"
	}
	return fmt.Sprintf("SessionState(%d)", int(s))
}

type transition struct {
	from SessionState
	to   SessionState
}

// 发送会话建立消息时的状态推进
var sendTransitions = map[ipmi.PayloadType]transition{
	ipmi.PayloadOpenSessionRequest: {StatePreSession, StateOpenSessionSent},
	ipmi.PayloadRAKP1:              {StateOpenSessionReceived, StateRakp1Sent},
	ipmi.PayloadRAKP3:              {StateRakp2Received, StateRakp3Sent},
}

// nextSendState 返回发送该载荷后的状态, 当前状态不允许时返回 ErrInvalidSessionState
func nextSendState(cur SessionState, t ipmi.PayloadType) (SessionState, error) {
	if tr, ok := sendTransitions[t]; ok {
		if cur != tr.from {
			return cur, fmt.Errorf("%w: %s 需要状态 %s, 当前 %s", ipmi.ErrInvalidSessionState, t, tr.from, cur)
		}
		return tr.to, nil
	}
	switch t {
	case ipmi.PayloadIPMI:
		if cur == StatePreSession || cur == StateActive {
			return cur, nil
		}
	case ipmi.PayloadSOL:
		if cur == StateActive {
			return cur, nil
		}
	}
	return cur, fmt.Errorf("%w: 状态 %s 下不能发送 %s", ipmi.ErrInvalidSessionState, cur, t)
}

// acceptsInbound 当前状态是否期待该类型的入站载荷
func acceptsInbound(cur SessionState, t ipmi.PayloadType) bool {
	switch t {
	case ipmi.PayloadOpenSessionResponse:
		return cur == StateOpenSessionSent
	case ipmi.PayloadRAKP2:
		return cur == StateRakp1Sent
	case ipmi.PayloadRAKP4:
		return cur == StateRakp3Sent
	case ipmi.PayloadIPMI:
		return cur == StatePreSession || cur == StateActive
	case ipmi.PayloadSOL:
		return cur == StateActive
	}
	return false
}
