package sftp

import (
	"io"
	"os"
	"syscall"

	"github.com/pkg/errors"
)

// SFTP status codes, draft-ietf-secsh-filexfer-02 section 7. Codes 6 and 7
// are defined by the protocol but never emitted by this server: there is
// no multiplexed connection for this engine to lose.
const (
	statusOK               = 0
	statusEOF              = 1
	statusNoSuchFile       = 2
	statusPermissionDenied = 3
	statusFailure          = 4
	statusBadMessage       = 5
	statusNoConnection     = 6
	statusConnectionLost   = 7
	statusOpUnsupported    = 8
)

var statusMessages = map[uint32]string{
	statusOK:               "Success",
	statusEOF:              "End of file",
	statusNoSuchFile:       "No such file",
	statusPermissionDenied: "Permission denied",
	statusFailure:          "Failure",
	statusBadMessage:       "Bad message",
	statusOpUnsupported:    "Operation unsupported",
}

func statusMessage(code uint32) string {
	if m, ok := statusMessages[code]; ok {
		return m
	}
	return "Unknown error"
}

// errnoToStatus maps a host errno to its SFTP status code.
func errnoToStatus(errno syscall.Errno) uint32 {
	switch errno {
	case 0:
		return statusOK
	case syscall.ENOENT, syscall.ENOTDIR, syscall.EBADF, syscall.ELOOP:
		return statusNoSuchFile
	case syscall.EPERM, syscall.EACCES, syscall.EFAULT:
		return statusPermissionDenied
	case syscall.ENAMETOOLONG, syscall.EINVAL:
		return statusBadMessage
	default:
		return statusFailure
	}
}

// statusForError maps any error a handler surfaced from a host filesystem
// call into an SFTP status code. nil maps to OK, io.EOF maps to EOF, and
// anything wrapped in pkg/errors context is unwrapped back to its causal
// *os.PathError/*os.LinkError/syscall.Errno before the table is consulted.
func statusForError(err error) uint32 {
	if err == nil {
		return statusOK
	}
	cause := errors.Cause(err)
	if cause == io.EOF {
		return statusEOF
	}
	if errno, ok := extractErrno(cause); ok {
		return errnoToStatus(errno)
	}
	return statusFailure
}

func extractErrno(err error) (syscall.Errno, bool) {
	switch e := err.(type) {
	case syscall.Errno:
		return e, true
	case *os.PathError:
		return extractErrno(e.Err)
	case *os.LinkError:
		return extractErrno(e.Err)
	case *os.SyscallError:
		return extractErrno(e.Err)
	default:
		return 0, false
	}
}
