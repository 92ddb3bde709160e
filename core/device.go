package core

import "tinygo.org/x/drivers"

// SPIDevice is one chip select on a SharedSPI. It satisfies drivers.SPI, so
// any TinyGo driver can be built on it without knowing the bus is shared.
// Every call borrows the bus, frames it with chip select and releases it;
// when the bus is busy the call fails with ErrAlreadyBorrowed.
type SPIDevice struct {
	shared     *SharedSPI
	gpio       GPIODriver
	cs         GPIOPin
	hasCS      bool
	activeHigh bool
}

var _ drivers.SPI = (*SPIDevice)(nil)

// Device adds a chip-select device to the bus. The pin is configured as an
// output through the registered GPIO driver and parked inactive.
func (s *SharedSPI) Device(cs GPIOPin, activeHigh bool) (*SPIDevice, error) {
	gpio := GetGPIO()
	if gpio == nil {
		return nil, ErrNoChipSelect
	}
	if err := gpio.ConfigureOutput(cs); err != nil {
		return nil, err
	}

	d := &SPIDevice{
		shared:     s,
		gpio:       gpio,
		cs:         cs,
		hasCS:      true,
		activeHigh: activeHigh,
	}
	if err := d.deselect(); err != nil {
		return nil, err
	}
	s.devices = append(s.devices, d)
	return d, nil
}

// DeviceWithoutCS adds a device for buses where the peripheral has no chip
// select line (or it is driven by hardware)
func (s *SharedSPI) DeviceWithoutCS() *SPIDevice {
	d := &SPIDevice{shared: s}
	s.devices = append(s.devices, d)
	return d
}

// Pin returns the chip select pin and whether the device has one
func (d *SPIDevice) Pin() (GPIOPin, bool) {
	return d.cs, d.hasCS
}

// Tx runs one framed transfer (see drivers.SPI)
func (d *SPIDevice) Tx(w, r []byte) error {
	b, err := d.shared.TryBorrow()
	if err != nil {
		return err
	}
	defer b.Release()

	if err := d.selectChip(); err != nil {
		return err
	}
	err = b.Tx(w, r)
	if csErr := d.deselect(); err == nil {
		err = csErr
	}
	return err
}

// Transfer exchanges one byte inside its own chip-select frame
func (d *SPIDevice) Transfer(c byte) (byte, error) {
	b, err := d.shared.TryBorrow()
	if err != nil {
		return 0, err
	}
	defer b.Release()

	if err := d.selectChip(); err != nil {
		return 0, err
	}
	rx, err := b.Transfer(c)
	if csErr := d.deselect(); err == nil {
		err = csErr
	}
	return rx, err
}

// Transaction keeps chip select asserted across everything fn does with b.
// Use it for command/response exchanges that must not be split.
func (d *SPIDevice) Transaction(fn func(b *SPIBorrow) error) error {
	b, err := d.shared.TryBorrow()
	if err != nil {
		return err
	}
	defer b.Release()

	if err := d.selectChip(); err != nil {
		return err
	}
	err = fn(&b)
	if csErr := d.deselect(); err == nil {
		err = csErr
	}
	return err
}

func (d *SPIDevice) selectChip() error {
	if !d.hasCS {
		return nil
	}
	return d.gpio.SetPin(d.cs, d.activeHigh)
}

func (d *SPIDevice) deselect() error {
	if !d.hasCS {
		return nil
	}
	return d.gpio.SetPin(d.cs, !d.activeHigh)
}

// I2CDevice is a per-driver view of a SharedI2C that satisfies drivers.I2C.
// Each Tx is its own borrow. Some TinyGo drivers drop bus errors, so the
// last failure is also kept for Err.
type I2CDevice struct {
	shared  *SharedI2C
	lastErr error
}

var _ drivers.I2C = (*I2CDevice)(nil)

// Device returns a new view of the bus for one driver
func (s *SharedI2C) Device() *I2CDevice {
	return &I2CDevice{shared: s}
}

// Tx borrows the bus for one transaction
func (d *I2CDevice) Tx(addr uint16, w, r []byte) error {
	b, err := d.shared.TryBorrow()
	if err != nil {
		d.lastErr = err
		return err
	}
	err = b.Tx(addr, w, r)
	b.Release()
	if err != nil {
		d.lastErr = err
	}
	return err
}

// Err returns the last transaction error and clears it
func (d *I2CDevice) Err() error {
	err := d.lastErr
	d.lastErr = nil
	return err
}
