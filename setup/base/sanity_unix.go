//go:build linux || darwin || netbsd || freebsd || openbsd || solaris || dragonfly || aix
// +build linux darwin netbsd freebsd openbsd solaris dragonfly aix

package base

import (
	"syscall"

	"github.com/sirupsen/logrus"
)

const minFileDescriptors = 4096

func platformSanityChecks() {
	// Every open session stream holds a socket, and the in-process NATS
	// server keeps its stream files open.
	var rLimit syscall.Rlimit
	if err := syscall.Getrlimit(syscall.RLIMIT_NOFILE, &rLimit); err == nil && rLimit.Cur < minFileDescriptors {
		logrus.Warnf("Process file descriptor limit is currently %d, it is recommended to raise the limit for Perfil to at least %d", rLimit.Cur, minFileDescriptors)
	}
}
