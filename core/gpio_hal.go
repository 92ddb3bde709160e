package core

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// GPIODriver is the abstract GPIO interface that core code uses for chip
// select lines. Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output
	// Returns error if pin is invalid or already in use
	ConfigureOutput(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error

	// GetPin reads the current pin state
	GetPin(pin GPIOPin) (bool, error)
}

// Global singleton used by core code.
var gpioDriver GPIODriver

// SetGPIODriver is called by target-specific code to register its driver.
func SetGPIODriver(d GPIODriver) {
	gpioDriver = d
}

// GetGPIO returns the configured driver or nil if none is registered
func GetGPIO() GPIODriver {
	return gpioDriver
}

// MustGPIO returns the configured driver and treats a missing one as fatal
func MustGPIO() GPIODriver {
	if gpioDriver == nil {
		Fatal("GPIO driver not configured")
	}
	return gpioDriver
}
