package reader

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sync"

	"golang.org/x/sys/unix"

	"cardplay/internal/logging"
	"cardplay/internal/services"
)

// eviocgrab is EVIOCGRAB, _IOW('E', 0x90, int).
const eviocgrab = 0x40044590

// Device is a card reader opened from /dev/input. While grabbed, its key
// presses reach only this process.
type Device struct {
	*Scanner
	path    string
	file    *os.File
	grabbed bool
	logger  *slog.Logger

	closeOnce sync.Once
	closeErr  error
}

// Open opens the input device at path, taking an exclusive grab when grab is
// true.
func Open(path string, grab bool, logger *slog.Logger) (*Device, error) {
	logger = logging.NewComponentLogger(logger, "reader")
	file, err := os.Open(path)
	if err != nil {
		return nil, services.Wrap(services.ErrNotFound, "reader", "open", path, err)
	}
	d := &Device{Scanner: NewScanner(file), path: path, file: file, logger: logger}
	if grab {
		if err := setGrab(file, 1); err != nil {
			_ = file.Close()
			return nil, services.Wrap(services.ErrTransport, "reader", "grab", path, err)
		}
		d.grabbed = true
	}
	logger.Info("card reader opened",
		logging.String("path", path),
		logging.Bool("grabbed", d.grabbed),
		logging.String(logging.FieldEventType, "reader_opened"),
	)
	return d, nil
}

// Path returns the device path.
func (d *Device) Path() string {
	return d.path
}

// Close releases the grab and closes the device. It is safe to call more than
// once and from another goroutine to unblock Next.
func (d *Device) Close() error {
	d.closeOnce.Do(func() {
		var errs []error
		if d.grabbed {
			if err := setGrab(d.file, 0); err != nil && !errors.Is(err, unix.ENODEV) {
				errs = append(errs, fmt.Errorf("release grab: %w", err))
			}
		}
		if err := d.file.Close(); err != nil {
			errs = append(errs, err)
		}
		d.closeErr = errors.Join(errs...)
		d.logger.Info("card reader released",
			logging.String("path", d.path),
			logging.String(logging.FieldEventType, "reader_closed"),
		)
	})
	return d.closeErr
}

func setGrab(file *os.File, value int) error {
	conn, err := file.SyscallConn()
	if err != nil {
		return err
	}
	var ioctlErr error
	if err := conn.Control(func(fd uintptr) {
		ioctlErr = unix.IoctlSetInt(int(fd), eviocgrab, value)
	}); err != nil {
		return err
	}
	return ioctlErr
}
