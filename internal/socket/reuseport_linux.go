//go:build linux

package socket

import "golang.org/x/sys/unix"

const soReusePort = unix.SO_REUSEPORT
