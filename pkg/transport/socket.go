package transport

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"syscall"
	"time"

	"go.uber.org/multierr"
	"golang.org/x/sys/unix"
)

// 单个 RMCP+ 报文不会超过该长度
const maxDatagram = 1024

// Options BMC 套接字参数
type Options struct {
	Host      string
	Port      int
	Interface string // 绑定到该接口的第一个 IPv4 地址
	Namespace string // 在该命名网络命名空间中创建套接字
}

// UDPConn 连接到单个 BMC 的 UDP 套接字, 提供 select 式就绪等待
type UDPConn struct {
	conn *net.UDPConn
	raw  syscall.RawConn
	buf  []byte
}

// Dial 创建已连接的 UDP 套接字
func Dial(opts Options) (*UDPConn, error) {
	if opts.Port == 0 {
		opts.Port = 623
	}
	remote, err := net.ResolveUDPAddr("udp4", net.JoinHostPort(opts.Host, strconv.Itoa(opts.Port)))
	if err != nil {
		return nil, fmt.Errorf("解析 BMC 地址 %s 失败: %w", opts.Host, err)
	}

	dial := func() (*net.UDPConn, error) {
		var local *net.UDPAddr
		if opts.Interface != "" {
			ip, err := InterfaceAddr(opts.Interface)
			if err != nil {
				return nil, err
			}
			local = &net.UDPAddr{IP: ip}
		}
		return net.DialUDP("udp4", local, remote)
	}

	var conn *net.UDPConn
	if opts.Namespace != "" {
		conn, err = DialInNamespace(opts.Namespace, dial)
	} else {
		conn, err = dial()
	}
	if err != nil {
		return nil, err
	}
	return NewUDPConn(conn)
}

// NewUDPConn 包装已连接的套接字
func NewUDPConn(conn *net.UDPConn) (*UDPConn, error) {
	raw, err := conn.SyscallConn()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("获取套接字描述符失败: %w", err)
	}
	return &UDPConn{conn: conn, raw: raw, buf: make([]byte, maxDatagram)}, nil
}

func (u *UDPConn) Send(b []byte) error {
	_, err := u.conn.Write(b)
	return err
}

// Wait 等待套接字可读, 超时返回 false
func (u *UDPConn) Wait(timeout time.Duration) (bool, error) {
	var (
		n       int
		pollErr error
	)
	deadline := time.Now().Add(timeout)
	err := u.raw.Control(func(fd uintptr) {
		for {
			ms := int(time.Until(deadline).Milliseconds())
			if ms < 0 {
				ms = 0
			}
			fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
			n, pollErr = unix.Poll(fds, ms)
			if !errors.Is(pollErr, unix.EINTR) {
				return
			}
		}
	})
	if err = multierr.Append(err, pollErr); err != nil {
		return false, fmt.Errorf("等待套接字失败: %w", err)
	}
	return n > 0, nil
}

// Recv 读取一个报文, 应在 Wait 返回 true 之后调用
func (u *UDPConn) Recv() ([]byte, error) {
	n, err := u.conn.Read(u.buf)
	if err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, u.buf[:n])
	return out, nil
}

func (u *UDPConn) Close() error {
	return u.conn.Close()
}

func (u *UDPConn) LocalAddr() net.Addr {
	return u.conn.LocalAddr()
}

func (u *UDPConn) RemoteAddr() net.Addr {
	return u.conn.RemoteAddr()
}
