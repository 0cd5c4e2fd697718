package printer

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"
	"time"
)

// Printer sends raw ESC/POS data to a thermal printer.
type Printer interface {
	// Print sends raw ESC/POS bytes to the printer. Implementations must
	// return once ctx is done, even if the device is hung.
	Print(ctx context.Context, data []byte) error
	// Available reports whether the printer can currently accept a job.
	Available(ctx context.Context) bool
	// Info describes the configured printer.
	Info() Info
	// Close releases the printer connection/handle.
	Close() error
}

// Info describes a configured printer.
type Info struct {
	Name       string `json:"name"`
	Type       string `json:"type"`
	Target     string `json:"target,omitempty"`
	Configured bool   `json:"configured"`
}

var (
	// ErrNotConfigured is returned by the null printer.
	ErrNotConfigured = errors.New("printer: no printer configured")
	// ErrBusy is returned while another write holds the printer.
	ErrBusy = errors.New("printer: busy")
)

// --- USB Printer (writes to device file, e.g. /dev/usb/lp0) ---

// writeGrace is how long Print waits, after ctx ends, for a cancelled
// write to return before it reports the device as hung.
const writeGrace = 250 * time.Millisecond

type usbPrinter struct {
	name string
	path string
	// busy holds a token while a write to the device is outstanding,
	// including one that outlived its caller.
	busy chan struct{}
}

// NewUSBPrinter creates a printer that writes to a USB device file.
func NewUSBPrinter(name, devicePath string) Printer {
	return &usbPrinter{name: name, path: devicePath, busy: make(chan struct{}, 1)}
}

func (p *usbPrinter) Print(ctx context.Context, data []byte) error {
	select {
	case p.busy <- struct{}{}:
	default:
		return fmt.Errorf("%w: previous write to %s has not finished", ErrBusy, p.path)
	}

	done := make(chan error, 1)
	go func() {
		err := p.write(ctx, data)
		<-p.busy
		done <- err
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
	}

	// Pollable devices abort the write at the deadline; give them a moment.
	grace := time.NewTimer(writeGrace)
	defer grace.Stop()
	select {
	case err := <-done:
		if err == nil {
			return nil
		}
		return fmt.Errorf("printer: USB device %s did not respond: %w", p.path, ctx.Err())
	case <-grace.C:
		return fmt.Errorf("printer: USB device %s did not respond: %w", p.path, ctx.Err())
	}
}

// write opens the device non-blocking so the runtime poller can cancel the
// write when ctx ends. Files that are not pollable ignore the deadline and
// keep the busy token until the kernel returns.
func (p *usbPrinter) write(ctx context.Context, data []byte) error {
	f, err := os.OpenFile(p.path, os.O_WRONLY|syscall.O_NONBLOCK, 0)
	if err != nil {
		return fmt.Errorf("printer: failed to open USB device %s: %w", p.path, err)
	}
	defer f.Close()

	if deadline, ok := ctx.Deadline(); ok {
		_ = f.SetWriteDeadline(deadline)
	}
	stop := context.AfterFunc(ctx, func() {
		_ = f.SetWriteDeadline(time.Now())
	})
	defer stop()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("printer: failed to write to USB device %s: %w", p.path, err)
	}
	return nil
}

func (p *usbPrinter) Available(ctx context.Context) bool {
	if len(p.busy) > 0 {
		return false
	}
	_, err := os.Stat(p.path)
	return err == nil
}

func (p *usbPrinter) Info() Info {
	return Info{Name: p.name, Type: TypeUSB, Target: p.path, Configured: true}
}

func (p *usbPrinter) Close() error {
	return nil // opened per job
}

// --- Network Printer (dials TCP, e.g. 192.168.1.100:9100) ---

type networkPrinter struct {
	name        string
	address     string
	dialTimeout time.Duration
}

// NewNetworkPrinter creates a printer that connects via TCP.
// Address should include port, e.g. "192.168.1.100:9100".
func NewNetworkPrinter(name, address string) Printer {
	return &networkPrinter{
		name:        name,
		address:     address,
		dialTimeout: 5 * time.Second,
	}
}

func (p *networkPrinter) Print(ctx context.Context, data []byte) error {
	dialer := net.Dialer{Timeout: p.dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return fmt.Errorf("printer: failed to connect to %s: %w", p.address, err)
	}
	defer conn.Close()

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(10 * time.Second)
	}
	_ = conn.SetWriteDeadline(deadline)

	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("printer: failed to write to %s: %w", p.address, err)
	}
	return nil
}

func (p *networkPrinter) Available(ctx context.Context) bool {
	dialer := net.Dialer{Timeout: 2 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", p.address)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (p *networkPrinter) Info() Info {
	return Info{Name: p.name, Type: TypeNetwork, Target: p.address, Configured: true}
}

func (p *networkPrinter) Close() error {
	return nil // dialed per job
}

// --- Null Printer (used when no printer is configured) ---

type nullPrinter struct{}

// NewNullPrinter creates a printer for environments without hardware.
// Every job fails so it stays visible in the failed list.
func NewNullPrinter() Printer {
	return &nullPrinter{}
}

func (p *nullPrinter) Print(ctx context.Context, data []byte) error {
	return ErrNotConfigured
}

func (p *nullPrinter) Available(ctx context.Context) bool {
	return false
}

func (p *nullPrinter) Info() Info {
	return Info{Type: TypeNone}
}

func (p *nullPrinter) Close() error {
	return nil
}

// Printer types accepted by NewPrinterFromConfig.
const (
	TypeUSB     = "usb"
	TypeNetwork = "network"
	TypeNone    = "none"
)

// NewPrinterFromConfig creates the appropriate Printer based on type.
//
//	printerType: "usb", "network", or "none"
//	usbPath: device path for USB printers (e.g. "/dev/usb/lp0")
//	address: TCP address for network printers (e.g. "192.168.1.100:9100")
func NewPrinterFromConfig(name, printerType, usbPath, address string) (Printer, error) {
	switch printerType {
	case TypeUSB:
		if usbPath == "" {
			return nil, fmt.Errorf("printer: USB path is required for USB printer type")
		}
		if name == "" {
			name = usbPath
		}
		return NewUSBPrinter(name, usbPath), nil
	case TypeNetwork:
		if address == "" {
			return nil, fmt.Errorf("printer: address is required for network printer type")
		}
		if name == "" {
			name = address
		}
		return NewNetworkPrinter(name, address), nil
	case TypeNone, "":
		return NewNullPrinter(), nil
	default:
		return nil, fmt.Errorf("printer: unknown printer type %q (use usb, network, or none)", printerType)
	}
}
