//go:build !linux && !windows

package network

import (
	"net"
	"time"
)

const playerKeepAlive = 30 * time.Second

func ReuseAddrListenConfig() net.ListenConfig {
	return net.ListenConfig{KeepAlive: playerKeepAlive}
}
