package core

import (
	"errors"

	"tinygo.org/x/drivers/adxl345"
	"tinygo.org/x/drivers/mcp9808"
)

// ErrSensorMissing is returned by Configure when the temperature sensor does
// not answer with its device id
var ErrSensorMissing = errors.New("MCP9808 not detected")

// SensorSample is one poll of the sensor set
type SensorSample struct {
	Clock   uint32 // System clock when the poll finished
	X, Y, Z int16  // Raw ADXL345 acceleration
	TempC   float64
}

// SensorSet drives an ADXL345 accelerometer and an MCP9808 thermometer that
// share one I2C bus. Each driver gets its own device view and neither knows
// about the other.
type SensorSet struct {
	bus      *SharedI2C
	accelDev *I2CDevice
	tempDev  *I2CDevice
	accel    adxl345.Device
	temp     mcp9808.Device

	// Polls that lost the bus to another user
	Busy uint32

	// Read buffer for PollAccel, kept off the stack so the bus may hold it
	raw [6]byte
}

// NewSensorSet builds both drivers on bus
func NewSensorSet(bus *SharedI2C) *SensorSet {
	s := &SensorSet{
		bus:      bus,
		accelDev: bus.Device(),
		tempDev:  bus.Device(),
	}
	s.accel = adxl345.New(s.accelDev)
	s.temp = mcp9808.New(s.tempDev)
	return s
}

// Configure puts the accelerometer in measurement mode at rate and checks
// that the thermometer is present
func (s *SensorSet) Configure(rate adxl345.Rate, r adxl345.Range) error {
	s.accelDev.Err()
	s.tempDev.Err()

	s.accel.Configure()
	s.accel.SetRate(rate)
	s.accel.SetRange(r)
	if err := s.accelDev.Err(); err != nil {
		return err
	}

	if !s.temp.Connected() {
		if err := s.tempDev.Err(); err != nil {
			return err
		}
		return ErrSensorMissing
	}
	return nil
}

// Poll reads both sensors through their drivers. A bus busy with another
// user is reported as ErrAlreadyBorrowed and counted in Busy; the caller
// retries next tick. The drivers allocate, so Poll is for the main loop
// only; interrupt handlers use PollAccel.
func (s *SensorSet) Poll() (SensorSample, error) {
	var sample SensorSample

	// Errors left from an earlier call belong to that call
	s.accelDev.Err()
	s.tempDev.Err()

	sample.X, sample.Y, sample.Z = s.accel.ReadRawAcceleration()
	if err := s.accelDev.Err(); err != nil {
		return sample, s.noteBusy(err)
	}

	temp, err := s.temp.ReadTemperature()
	if err != nil {
		return sample, s.noteBusy(err)
	}
	sample.TempC = temp
	sample.Clock = GetTime()
	return sample, nil
}

// PollAccel reads the acceleration registers in one borrow, bypassing the
// drivers and their error slots. It does not allocate, so it can run from
// an interrupt handler. TempC is left zero and Busy is not touched.
func (s *SensorSet) PollAccel() (SensorSample, error) {
	b, err := s.bus.TryBorrow()
	if err != nil {
		return SensorSample{}, err
	}
	defer b.Release()

	// raw belongs to whoever holds the borrow, so decode before releasing
	if err := b.ReadRegister(adxl345.AddressLow, adxl345.REG_DATAX0, s.raw[:]); err != nil {
		return SensorSample{}, err
	}
	return SensorSample{
		Clock: GetTime(),
		X:     int16(uint16(s.raw[0]) | uint16(s.raw[1])<<8),
		Y:     int16(uint16(s.raw[2]) | uint16(s.raw[3])<<8),
		Z:     int16(uint16(s.raw[4]) | uint16(s.raw[5])<<8),
	}, nil
}

func (s *SensorSet) noteBusy(err error) error {
	if errors.Is(err, ErrAlreadyBorrowed) {
		s.Busy++
	}
	return err
}

// String formats the sample as "x,y,z t=C" with the temperature in
// hundredths of a degree
func (s SensorSample) String() string {
	return itoa(int(s.X)) + "," + itoa(int(s.Y)) + "," + itoa(int(s.Z)) +
		" t=" + itoa(int(s.TempC*100))
}
