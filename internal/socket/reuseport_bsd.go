//go:build freebsd || dragonfly || darwin || netbsd || openbsd

package socket

import "golang.org/x/sys/unix"

const soReusePort = unix.SO_REUSEPORT
