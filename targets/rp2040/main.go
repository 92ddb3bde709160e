//go:build rp2040

package main

import (
	"gobus/core"
	"gobus/protocol"
	"machine"
	"strconv"

	"tinygo.org/x/drivers/adxl345"
)

// Board wiring. SPI bus 4 is SCK=GP2 MOSI=GP3 MISO=GP4; I2C1 is SDA=GP6
// SCL=GP7; the ADXL345 INT1 line is on GP8.
const (
	bridgeSPIBus  core.SPIBusID = 4
	bridgeSPIRate               = 4000000
	sensorI2CBus  core.I2CBusID = 1
	sensorI2CRate               = 400000
	accelIntPin                 = machine.GPIO8
)

var chipSelects = [...]core.GPIOPin{5, 13, 14, 15}

var (
	bridge  *core.Bridge
	spiBus  *core.SharedSPI
	sensors *core.SensorSet

	rxFifo = protocol.NewFifoBuffer(256)
	rxBuf  [64]byte
	output protocol.ScratchOutput

	// Written by the INT1 handler, read by the report timer
	latest     core.SensorSample
	isrSamples uint32
	isrBusy    uint32

	reportTimer core.Timer

	loopDelay = core.Usec()
)

func main() {
	// Clear any watchdog state left over from before the reset
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	core.SetTimeSource(systemTicks)
	InitUSB()
	if w := InitDebugUART(); w != nil {
		core.SetDebugWriter(w)
	}

	policy := core.NewAbortPolicy(nil, nil)
	core.SetAbortPolicy(policy)

	core.SetGPIODriver(NewRPGPIODriver())
	core.SetI2CDriver(NewRPI2CDriver())

	raw, err := newBridgeBus()
	if err != nil {
		core.Fatal("SPI bus: " + err.Error())
	}
	spiBus = core.NewSharedSPI(raw, core.WithBusID(uint8(bridgeSPIBus)), core.WithAbort(policy))
	policy.OnHalt(spiBus.DeselectAll)

	bridge = core.NewBridge(spiBus)
	for i, pin := range chipSelects {
		dev, err := spiBus.Device(pin, false)
		if err != nil {
			core.Fatal("chip select: " + err.Error())
		}
		if err := bridge.AddChipSelect(uint8(i), dev); err != nil {
			core.Fatal(err.Error())
		}
	}

	i2cRaw, err := core.NewI2CHALBus(sensorI2CBus, sensorI2CRate)
	if err != nil {
		core.Fatal("I2C bus: " + err.Error())
	}
	i2cBus := core.NewSharedI2C(i2cRaw, core.WithBusID(uint8(sensorI2CBus)+8), core.WithAbort(policy))
	sensors = core.NewSensorSet(i2cBus)
	if err := sensors.Configure(adxl345.RATE_100HZ, adxl345.RANGE_2G); err != nil {
		// Keep serving the bridge without sensors
		core.DebugPrintln("[SENSORS] " + err.Error())
		sensors = nil
	} else {
		// First sample is valid 1.1ms + 1/ODR after entering measure mode
		core.Msec().DelayMs(12)
		startSensorInterrupt()
	}

	reportTimer.Handler = reportSensors
	reportTimer.WakeTime = core.GetTime() + core.TimerFromUS(1000000)
	core.ScheduleTimer(&reportTimer)

	go usbReaderLoop()
	core.DebugPrintln("[BOOT] gobus bridge ready")

	for {
		if n := rxFifo.Read(rxBuf[:]); n > 0 {
			bridge.Receive(rxBuf[:n], &output)
		}
		writeUSB()

		// Foreground sensor poll; INT1 may fire mid-transaction and
		// find the I2C bus borrowed
		if sensors != nil {
			if s, err := sensors.Poll(); err == nil {
				setLatest(s)
			}
		}

		core.ProcessTimers()
		loopDelay.DelayUs(100)
	}
}

// usbReaderLoop moves USB bytes into rxFifo so the main loop never waits
// on the host. Bytes stay in the USB buffer while the FIFO is full.
func usbReaderLoop() {
	var buf [32]byte
	for {
		free := min(rxFifo.Free(), len(buf))
		if n := USBRead(buf[:free]); n > 0 {
			rxFifo.Write(buf[:n])
		}
		loopDelay.SleepTicks(100)
	}
}

// startSensorInterrupt reads the accelerometer from the INT1 edge handler.
// The handler never waits or allocates: a borrowed bus is counted and
// skipped, and the temperature is left to the main loop.
func startSensorInterrupt() {
	accelIntPin.Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	err := accelIntPin.SetInterrupt(machine.PinRising, func(machine.Pin) {
		s, err := sensors.PollAccel()
		if err != nil {
			isrBusy++
			return
		}
		isrSamples++
		latest.X, latest.Y, latest.Z = s.X, s.Y, s.Z
		latest.Clock = s.Clock
	})
	if err != nil {
		core.DebugPrintln("[SENSORS] INT1: " + err.Error())
	}
}

func setLatest(s core.SensorSample) {
	core.Critical(func() {
		latest = s
	})
}

func reportSensors(t *core.Timer) uint8 {
	core.DebugPrintln("[SENSORS] " + latest.String() +
		" isr=" + strconv.FormatUint(uint64(isrSamples), 10) +
		" isr_busy=" + strconv.FormatUint(uint64(isrBusy), 10))
	t.WakeTime += core.TimerFromUS(1000000)
	return core.SF_RESCHEDULE
}

// writeUSB flushes pending response frames. A failed write drops them; the
// host times out and retries.
func writeUSB() {
	result := output.Result()
	for len(result) > 0 {
		n, err := USBWriteBytes(result)
		if err != nil || n == 0 {
			break
		}
		result = result[n:]
	}
	output.Reset()
}
