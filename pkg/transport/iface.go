package transport

import (
	"fmt"
	"net"

	"github.com/iniwex5/netlink"
)

// InterfaceAddr 返回接口上的第一个 IPv4 地址
func InterfaceAddr(iface string) (net.IP, error) {
	link, err := netlink.LinkByName(iface)
	if err != nil {
		return nil, fmt.Errorf("获取接口 %s 失败: %v", iface, err)
	}
	addrs, err := netlink.AddrList(link, netlink.FAMILY_V4)
	if err != nil {
		return nil, fmt.Errorf("获取接口 %s 地址失败: %v", iface, err)
	}
	for _, a := range addrs {
		if a.IP != nil && a.IP.To4() != nil {
			return a.IP, nil
		}
	}
	return nil, fmt.Errorf("接口 %s 没有 IPv4 地址", iface)
}
