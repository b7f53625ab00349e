package httpx

import (
	"errors"
	"net"
	"os"
	"runtime"
	"strconv"
	"syscall"

	"github.com/snapbooth/snapbooth/pkg/logger"
)

const maxPortRollAttempts = 42

type Listener struct {
	net.Listener
}

func (l Listener) GetPort() int {
	if addr, ok := l.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// NewListener binds a TCP listener to the address, optionally rolling
// the port forward when it is already taken.
func NewListener(address string, rollPorts bool, log *logger.Logger) (*Listener, error) {
	ls, err := net.Listen("tcp4", address)
	if err != nil {
		if rollPorts && isErrorAddressAlreadyInUse(err) {
			host, portText, e := net.SplitHostPort(address)
			if e != nil {
				return nil, err
			}
			port, _ := strconv.Atoi(portText)
			for i := port + 1; i < port+maxPortRollAttempts; i++ {
				log.Debug().Msgf("roll %v %v", host, i)
				ls, err = net.Listen("tcp4", host+":"+strconv.Itoa(i))
				if err == nil {
					return &Listener{ls}, nil
				}
			}
		}
		return nil, err
	}
	return &Listener{ls}, nil
}

func isErrorAddressAlreadyInUse(err error) bool {
	var eOsSyscall *os.SyscallError
	if !errors.As(err, &eOsSyscall) {
		return false
	}
	var errErrno syscall.Errno
	if !errors.As(eOsSyscall, &errErrno) {
		return false
	}
	if errErrno == syscall.EADDRINUSE {
		return true
	}
	const WSAEADDRINUSE = 10048
	if runtime.GOOS == "windows" && errErrno == WSAEADDRINUSE {
		return true
	}
	return false
}
