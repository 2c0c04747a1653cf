package transport

import (
	"net"
	"os"

	"main/pkg/exception"
)

const unixNetwork = "unix"

// RemoveIfExists removes a stale socket file. A path occupied by a
// non-socket is refused rather than clobbered.
func RemoveIfExists(path string) error {
	if path == "" {
		return exception.ErrEmptyPathUDS
	}
	info, err := os.Lstat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if info.Mode()&os.ModeSocket == 0 {
		return exception.ErrInvalidArgument
	}
	return os.Remove(path)
}

func listenUnix(path string) (*net.UnixListener, error) {
	if path == "" {
		return nil, exception.ErrEmptyPathUDS
	}
	if err := RemoveIfExists(path); err != nil {
		return nil, err
	}
	ln, err := net.ListenUnix(unixNetwork, &net.UnixAddr{Name: path, Net: unixNetwork})
	if err != nil {
		return nil, err
	}
	ln.SetUnlinkOnClose(true)
	return ln, nil
}

func dialUnix(path string) (*net.UnixConn, error) {
	if path == "" {
		return nil, exception.ErrEmptyPathUDS
	}
	return net.DialUnix(unixNetwork, nil, &net.UnixAddr{Name: path, Net: unixNetwork})
}
