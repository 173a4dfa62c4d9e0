package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/moby/term"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/iniwex5/lanplus-go/pkg/lanplus"
	"github.com/iniwex5/lanplus-go/pkg/logger"
)

const solPollWait = 50 * time.Millisecond

type solOptions struct {
	instance uint8
	escape   byte
}

func newSolCommand(root *rootOptions) *cobra.Command {
	var opts solOptions
	var escape string

	cmd := &cobra.Command{
		Use:   "sol",
		Short: "Attach the terminal to Serial over LAN",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			if len(escape) != 1 {
				return fmt.Errorf("转义字符必须是单个字符")
			}
			opts.escape = escape[0]

			ctx := cmd.Context()
			s, err := openSession(ctx, cmd, root)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, s.Close()) }()
			return runSol(ctx, s, &opts, os.Stdin, cmd.OutOrStdout())
		},
	}
	cmd.Flags().Uint8Var(&opts.instance, "instance", 1, "SOL payload instance")
	cmd.Flags().StringVarP(&escape, "escape-char", "e", "~", "escape character, followed by '.' to detach")
	return cmd
}

func runSol(ctx context.Context, s *lanplus.Session, opts *solOptions, in io.Reader, out io.Writer) (err error) {
	act, err := s.ActivateSOL(ctx, opts.instance)
	if err != nil {
		return err
	}
	defer func() {
		if s.SOLActive() {
			err = multierr.Append(err, s.DeactivateSOL(context.Background(), opts.instance))
		}
	}()
	logger.Info("SOL 已激活",
		logger.Uint8("instance", act.Instance),
		logger.Uint16("inbound", act.InboundSize),
		logger.Uint16("outbound", act.OutboundSize))

	if fd, isTerm := term.GetFdInfo(in); isTerm {
		state, err := term.SetRawTerminal(fd)
		if err != nil {
			return err
		}
		defer term.RestoreTerminal(fd, state)
	}
	fmt.Fprintf(out, "[SOL 会话已连接, 输入 %c. 断开]\r\n", opts.escape)

	s.OnSOLInput(func(data []byte) {
		out.Write(data)
	})
	defer s.OnSOLInput(nil)

	input := make(chan []byte)
	go readInput(ctx, in, input)

	esc := &escapeFilter{escape: opts.escape, atLineStart: true}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case data, ok := <-input:
			if !ok {
				return nil
			}
			data, detach := esc.filter(data)
			if len(data) > 0 {
				if _, err := s.SendSOL(ctx, &lanplus.SolRequest{Data: data}); err != nil {
					return err
				}
			}
			if detach {
				fmt.Fprint(out, "\r\n[SOL 会话已断开]\r\n")
				return nil
			}
		default:
			if _, err := s.PollSOL(ctx, solPollWait); err != nil {
				return err
			}
			if !s.SOLActive() {
				return fmt.Errorf("BMC 已停用 SOL")
			}
		}
	}
}

func readInput(ctx context.Context, in io.Reader, ch chan<- []byte) {
	defer close(ch)
	buf := make([]byte, 256)
	for {
		n, err := in.Read(buf)
		if n > 0 {
			data := append([]byte(nil), buf[:n]...)
			select {
			case ch <- data:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			return
		}
	}
}

// escapeFilter 识别行首的 "<escape>." 断开序列, 连续两个转义字符发送一个
type escapeFilter struct {
	escape      byte
	atLineStart bool
	pending     bool
}

func (f *escapeFilter) filter(in []byte) ([]byte, bool) {
	out := make([]byte, 0, len(in))
	for _, c := range in {
		if f.pending {
			f.pending = false
			switch c {
			case '.':
				return out, true
			case f.escape:
				out = append(out, c)
				f.atLineStart = false
				continue
			default:
				out = append(out, f.escape)
			}
		} else if f.atLineStart && c == f.escape {
			f.pending = true
			continue
		}
		out = append(out, c)
		f.atLineStart = c == '\r' || c == '\n'
	}
	return out, false
}
