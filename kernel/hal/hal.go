// Package hal initializes the device drivers used by the kernel.
package hal

import (
	"io"
	"rikaos/device"
	"rikaos/kernel/kfmt"
)

// maxDrivers bounds the number of drivers tracked by the HAL.
const maxDrivers = 8

// console is implemented by drivers that can display kernel output.
type console interface {
	io.Writer
	Clear()
}

// managedDevices contains the devices initialized by the HAL.
type managedDevices struct {
	activeConsole console

	// activeDrivers tracks all initialized device drivers.
	activeDrivers [maxDrivers]device.Driver
	driverCount   int
}

// prefixBuffer is a fixed-size io.Writer for building log prefixes without
// allocating.
type prefixBuffer struct {
	data [64]byte
	len  int
}

func (b *prefixBuffer) Write(p []byte) (int, error) {
	n := copy(b.data[b.len:], p)
	b.len += n
	return n, nil
}

func (b *prefixBuffer) Reset()        { b.len = 0 }
func (b *prefixBuffer) Bytes() []byte { return b.data[:b.len] }

var (
	devices managedDevices
	strBuf  prefixBuffer

	// log has no sink so it follows the active kfmt output sink.
	log kfmt.PrefixWriter

	// setOutputSinkFn is mocked by tests.
	setOutputSinkFn = kfmt.SetOutputSink
)

// ActiveConsole returns the console that receives kernel output or nil if no
// console driver has been initialized.
func ActiveConsole() io.Writer {
	if devices.activeConsole == nil {
		return nil
	}
	return devices.activeConsole
}

// ActiveDrivers returns the drivers that were successfully initialized.
func ActiveDrivers() []device.Driver {
	return devices.activeDrivers[:devices.driverCount]
}

// InitDrivers initializes the supplied drivers in order. Each driver logs
// through a writer prefixed with its name and version. Drivers whose
// initialization fails are reported and skipped. The first console driver
// that initializes successfully becomes the kfmt output sink.
func InitDrivers(drivers ...device.Driver) {
	for _, drv := range drivers {
		if drv == nil || devices.driverCount == maxDrivers {
			continue
		}

		strBuf.Reset()
		major, minor, patch := drv.DriverVersion()
		kfmt.Fprintf(&strBuf, "[hal] %s(%d.%d.%d): ", drv.DriverName(), major, minor, patch)
		log.Prefix = strBuf.Bytes()

		if err := drv.DriverInit(&log); err != nil {
			kfmt.Fprintf(&log, "init failed: %s\n", err.Message)
			continue
		}

		kfmt.Fprintf(&log, "initialized\n")
		devices.activeDrivers[devices.driverCount] = drv
		devices.driverCount++
		onDriverInit(drv)
	}
}

// onDriverInit is invoked by InitDrivers whenever a driver is successfully
// initialized.
func onDriverInit(drv device.Driver) {
	if cons, ok := drv.(console); ok && devices.activeConsole == nil {
		devices.activeConsole = cons
		setOutputSinkFn(cons)
	}
}
