package lanplus

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/iniwex5/lanplus-go/pkg/ipmi"
	"github.com/iniwex5/lanplus-go/pkg/logger"
	"github.com/iniwex5/lanplus-go/pkg/metrics"
)

// rawMatch 检查原始入站报文, done 为 true 表示等待结束
type rawMatch func(raw []byte) (done bool, err error)

// payloadMatch 检查已通过校验的入站载荷
type payloadMatch func(in *inbound) (done bool, err error)

// sendRecv 发送报文并等待 match 接受的响应.
// 每轮在当前超时内读取报文; 只有距上次发送已满一个超时才重发, 同时超时增加 TimeoutStep.
// 轮数达到 Retries 返回 ErrNoResponse. 退出时超时恢复为配置值.
func (s *Session) sendRecv(ctx context.Context, pkt []byte, match rawMatch) error {
	defer func() { s.timeout = s.cfg.Timeout }()

	xmit := true
	var lastSend time.Time
	for try := 0; try < s.cfg.Retries; try++ {
		if xmit {
			if err := s.transport.Send(pkt); err != nil {
				return fmt.Errorf("发送报文失败: %w", err)
			}
			lastSend = time.Now()
			s.metrics.Sent()
		}

		done, err := s.pollRecv(ctx, match)
		if err != nil || done {
			return err
		}

		xmit = time.Since(lastSend) >= s.timeout
		if xmit {
			s.timeout += s.cfg.TimeoutStep
			s.metrics.Retry()
			s.Logger.Debug("超时，准备重传",
				logger.Int("attempt", try+2),
				logger.Int("maxAttempts", s.cfg.Retries),
				logger.Duration("timeout", s.timeout))
		}
	}
	return ErrNoResponse
}

// sendOnly 发送不期待响应的报文 (SOL 确认包, 失败状态的 RAKP3)
func (s *Session) sendOnly(pkt []byte) error {
	if err := s.transport.Send(pkt); err != nil {
		return fmt.Errorf("发送报文失败: %w", err)
	}
	s.metrics.Sent()
	return nil
}

// pollRecv 在当前超时内逐个读取报文直到 match 接受. 超时返回 (false, nil).
func (s *Session) pollRecv(ctx context.Context, match rawMatch) (bool, error) {
	deadline := time.Now().Add(s.timeout)
	for {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		wait := time.Until(deadline)
		if wait <= 0 {
			return false, nil
		}
		ready, err := s.transport.Wait(wait)
		if err != nil {
			return false, err
		}
		if !ready {
			return false, nil
		}
		raw, err := s.transport.Recv()
		if err != nil {
			s.Logger.Debug("读取报文失败", logger.Err(err))
			continue
		}
		s.metrics.Received()

		done, err := match(raw)
		if err != nil || done {
			return done, err
		}
	}
}

// matchPayload 将载荷检查包装为原始报文检查: 丢弃无法校验、状态不符或不匹配的报文.
// 携带数据的 SOL 报文在任何等待中都会先被确认并交付.
func (s *Session) matchPayload(match payloadMatch) rawMatch {
	return func(raw []byte) (bool, error) {
		in, err := s.unwrap(raw)
		if err != nil {
			var d *dropError
			if errors.As(err, &d) {
				s.metrics.Dropped(d.reason)
				s.Logger.Debug("丢弃入站报文", logger.String("reason", d.reason), logger.Err(d.err))
				return false, nil
			}
			if errors.Is(err, ErrSessionAborted) {
				s.Logger.Error("会话被中止", logger.Err(err))
				s.reset()
			}
			return false, err
		}
		consumed := false
		if sp, ok := in.payload.(*ipmi.SolPacket); ok && !sp.IsAckOnly() {
			if err := s.deliverSOL(sp); err != nil {
				return false, err
			}
			consumed = true
		}
		done, err := match(in)
		if !done && err == nil && !consumed {
			s.metrics.Dropped(metrics.DropUnmatched)
			s.Logger.Debug("丢弃不匹配的报文", logger.Stringer("type", in.header.PayloadType))
		}
		return done, err
	}
}
