package transport

import (
	"fmt"
	"net"
	"runtime"

	"github.com/vishvananda/netns"
	"go.uber.org/multierr"
)

// DialInNamespace 切换到命名网络命名空间创建套接字, 完成后恢复原命名空间.
// 套接字创建后始终属于目标命名空间.
// 注意: 需要 CAP_SYS_ADMIN 权限
func DialInNamespace(name string, dial func() (*net.UDPConn, error)) (*net.UDPConn, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	origin, err := netns.Get()
	if err != nil {
		return nil, fmt.Errorf("获取原始 netns 失败: %v", err)
	}
	defer origin.Close()

	target, err := netns.GetFromName(name)
	if err != nil {
		return nil, fmt.Errorf("打开 netns %s 失败: %v", name, err)
	}
	defer target.Close()

	if err := netns.Set(target); err != nil {
		return nil, fmt.Errorf("切换 netns 失败: %v", err)
	}
	conn, dialErr := dial()
	if restoreErr := netns.Set(origin); restoreErr != nil {
		dialErr = multierr.Append(dialErr, fmt.Errorf("恢复原始 netns 失败: %v", restoreErr))
	}
	if dialErr != nil {
		if conn != nil {
			conn.Close()
		}
		return nil, dialErr
	}
	return conn, nil
}
