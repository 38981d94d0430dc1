//go:build windows

package network

import (
	"net"
	"syscall"
	"time"
)

const playerKeepAlive = 30 * time.Second

// ReuseAddrListenConfig sets SO_REUSEADDR before binding. Windows lets another socket
// share the port with it, so errors are ignored rather than refusing to
// start.
func ReuseAddrListenConfig() net.ListenConfig {
	return net.ListenConfig{
		KeepAlive: playerKeepAlive,
		Control: func(network, address string, c syscall.RawConn) error {
			return c.Control(func(fd uintptr) {
				_ = syscall.SetsockoptInt(syscall.Handle(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
			})
		},
	}
}
