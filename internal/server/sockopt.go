package server

import "golang.org/x/sys/unix"

// isIgnorableAcceptErrno reports whether accept(2) failing with err is
// expected to resolve itself via re-arming readiness, matching the
// original's ignore_errno() macro exactly (EAGAIN/EINPROGRESS/EWOULDBLOCK)
// applied to listener_accept's loop exit. ECONNABORTED is deliberately NOT
// included here: it means a peer aborted the connection before accept(2)
// completed, a real (if harmless) event the original logs via
// listener_accept's fprintf(stderr, "accept: %s", ...) fallback rather than
// silently swallowing.
func isIgnorableAcceptErrno(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK || err == unix.EINPROGRESS
}

// acceptNonblock wraps accept4(2) with SOCK_NONBLOCK | SOCK_CLOEXEC so the
// returned fd never needs a separate fcntl round trip before registration.
func acceptNonblock(listenFD int) (fd int, sa unix.Sockaddr, err error) {
	return unix.Accept4(listenFD, unix.SOCK_NONBLOCK|unix.SOCK_CLOEXEC)
}

// setClientSockopts applies TCP_NODELAY to a freshly accepted connection,
// matching thread_accept's setsockopt(..., TCP_NODELAY, ...) call.
func setClientSockopts(fd int) error {
	return unix.SetsockoptInt(fd, unix.IPPROTO_TCP, unix.TCP_NODELAY, 1)
}

// closeFDQuiet closes fd; its callers discard the error. Used on setup paths that
// are already abandoning the connection (matching thread_accept's
// close(fd); free(client); continue on a failed setsockopt).
func closeFDQuiet(fd int) error {
	return unix.Close(fd)
}
