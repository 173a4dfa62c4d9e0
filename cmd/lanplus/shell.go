package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/iniwex5/lanplus-go/pkg/ipmi"
	"github.com/iniwex5/lanplus-go/pkg/lanplus"
)

func newShellCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "shell",
		Short: "Interactive shell over one session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) (err error) {
			ctx := cmd.Context()
			s, err := openSession(ctx, cmd, opts)
			if err != nil {
				return err
			}
			defer func() { err = multierr.Append(err, s.Close()) }()
			return runShell(ctx, s)
		},
	}
}

func runShell(ctx context.Context, s *lanplus.Session) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:      "ipmi> ",
		HistoryFile: os.ExpandEnv("$HOME/.lanplus_history"),
		AutoComplete: readline.NewPrefixCompleter(
			readline.PcItem("raw"),
			readline.PcItem("info"),
			readline.PcItem("session"),
			readline.PcItem("privilege",
				readline.PcItem("user"),
				readline.PcItem("operator"),
				readline.PcItem("administrator"),
			),
			readline.PcItem("quit"),
		),
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
	})
	if err != nil {
		return fmt.Errorf("初始化 readline 失败: %w", err)
	}
	defer rl.Close()

	out := rl.Stdout()
	for {
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				if len(line) == 0 {
					return nil
				}
				continue
			} else if err == io.EOF {
				return nil
			}
			return err
		}

		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if fields[0] == "quit" || fields[0] == "exit" {
			return nil
		}
		if err := shellCommand(ctx, s, fields, out); err != nil {
			fmt.Fprintf(out, "%% %v\n", err)
			if s.State() != lanplus.StateActive {
				return err
			}
		}
	}
}

func shellCommand(ctx context.Context, s *lanplus.Session, fields []string, out io.Writer) error {
	switch fields[0] {
	case "raw":
		req, err := parseRequest(fields[1:])
		if err != nil {
			return err
		}
		return runRaw(ctx, s, req, out)
	case "info":
		id, err := s.GetDeviceID(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, id)
	case "session":
		snap := s.Snapshot()
		fmt.Fprintf(out, "state      %s\n", snap.State)
		fmt.Fprintf(out, "ids        0x%08x/0x%08x\n", snap.ConsoleID, snap.BMCID)
		fmt.Fprintf(out, "suite      [%s]\n", snap.Suite)
		fmt.Fprintf(out, "privilege  %s (max %s)\n", snap.Privilege, snap.MaxPrivilege)
		fmt.Fprintf(out, "sequence   %d\n", snap.Sequence)
		fmt.Fprintf(out, "pending    %d\n", snap.Pending)
	case "privilege":
		if len(fields) != 2 {
			return fmt.Errorf("用法: privilege <level>")
		}
		level, err := ipmi.ParsePrivilegeLevel(fields[1])
		if err != nil {
			return err
		}
		got, err := s.SetSessionPrivilegeLevel(ctx, level)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "privilege %s\n", got)
	default:
		return fmt.Errorf("未知命令 %q", fields[0])
	}
	return nil
}
