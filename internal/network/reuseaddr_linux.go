//go:build linux

package network

import (
	"net"
	"syscall"
	"time"
)

// playerKeepAlive is the TCP keep-alive period of player sockets. The
// protocol has its own keep-alive packets; this only reaps dead peers that
// never send a FIN.
const playerKeepAlive = 30 * time.Second

// ReuseAddrListenConfig returns a net.ListenConfig that sets SO_REUSEADDR on the
// socket before binding, so a restarted server can take the port back while
// old connections are in TIME_WAIT.
func ReuseAddrListenConfig() net.ListenConfig {
	return net.ListenConfig{
		KeepAlive: playerKeepAlive,
		Control: func(network, address string, c syscall.RawConn) error {
			var opErr error
			err := c.Control(func(fd uintptr) {
				opErr = syscall.SetsockoptInt(int(fd), syscall.SOL_SOCKET, syscall.SO_REUSEADDR, 1)
			})
			if err != nil {
				return err
			}
			return opErr
		},
	}
}
