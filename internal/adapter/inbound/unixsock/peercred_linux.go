//go:build linux

package unixsock

import (
	"net"

	"golang.org/x/sys/unix"
)

// peerCredentials reads SO_PEERCRED off the connection's underlying
// file descriptor. Only meaningful for AF_UNIX sockets on Linux.
func peerCredentials(conn net.Conn) (uid, gid, pid int, ok bool) {
	uc, isUnix := conn.(*net.UnixConn)
	if !isUnix {
		return 0, 0, 0, false
	}
	raw, err := uc.SyscallConn()
	if err != nil {
		return 0, 0, 0, false
	}

	var cred *unix.Ucred
	var credErr error
	err = raw.Control(func(fd uintptr) {
		cred, credErr = unix.GetsockoptUcred(int(fd), unix.SOL_SOCKET, unix.SO_PEERCRED)
	})
	if err != nil || credErr != nil || cred == nil {
		return 0, 0, 0, false
	}
	return int(cred.Uid), int(cred.Gid), int(cred.Pid), true
}
