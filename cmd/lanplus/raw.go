package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/iniwex5/lanplus-go/pkg/ipmi"
	"github.com/iniwex5/lanplus-go/pkg/lanplus"
)

func newRawCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "raw NETFN CMD [DATA...]",
		Short: "Send a raw IPMI command",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			req, err := parseRequest(args)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			s, err := openSession(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, s.Close()) }()
			return runRaw(ctx, s, req, cmd.OutOrStdout())
		},
	}
}

func runRaw(ctx context.Context, s *lanplus.Session, req *ipmi.Request, out io.Writer) error {
	rsp, err := s.SendCommand(ctx, req)
	if err != nil {
		return err
	}
	if err := rsp.Err(); err != nil {
		return err
	}
	fmt.Fprintln(out, formatBytes(rsp.Data))
	return nil
}

// parseRequest 解析 "netfn cmd data..." 形式的参数, 每项为一个字节
func parseRequest(args []string) (*ipmi.Request, error) {
	b, err := parseBytes(args)
	if err != nil {
		return nil, err
	}
	if len(b) < 2 {
		return nil, fmt.Errorf("需要 netfn 与 cmd")
	}
	if b[0] > 0x3F {
		return nil, fmt.Errorf("netfn 超出范围: 0x%02x", b[0])
	}
	return &ipmi.Request{NetFn: b[0], Cmd: b[1], Data: b[2:]}, nil
}

// parseBytes 接受 0x12, 12 (十六进制) 或连续的十六进制串
func parseBytes(args []string) ([]byte, error) {
	var out []byte
	for _, a := range args {
		a = strings.TrimSpace(a)
		if a == "" {
			continue
		}
		if strings.HasPrefix(a, "0x") || strings.HasPrefix(a, "0X") {
			v, err := strconv.ParseUint(a[2:], 16, 8)
			if err != nil {
				return nil, fmt.Errorf("无效的字节 %q", a)
			}
			out = append(out, byte(v))
			continue
		}
		if len(a)%2 == 1 {
			a = "0" + a
		}
		b, err := hex.DecodeString(a)
		if err != nil {
			return nil, fmt.Errorf("无效的字节 %q", a)
		}
		out = append(out, b...)
	}
	return out, nil
}

func formatBytes(b []byte) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = fmt.Sprintf("%02x", v)
	}
	return strings.Join(parts, " ")
}
