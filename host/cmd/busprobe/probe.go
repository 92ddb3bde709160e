package main

import (
	"context"
	"errors"
	"time"

	"gobus/core"
	"gobus/host/serial"
)

const jedecReadID = 0x9F

// probeResult is what one chip select reported
type probeResult struct {
	ID         [3]byte
	Reads      int
	Busy       int // attempts that found the bus borrowed, locally or remotely
	Mismatched int // reads that disagreed with the first id
	Local      core.BusStats
}

// probeChipSelect reads the JEDEC id count times. A busy bus is retried
// with a growing pause, up to retries attempts per read.
func probeChipSelect(ctx context.Context, bus *core.SharedSPI, count, retries int) (probeResult, error) {
	var r probeResult

	for n := 0; n < count; n++ {
		id, busy, err := readJEDEC(ctx, bus, retries)
		r.Busy += busy
		if err != nil {
			r.Local = bus.Stats()
			return r, err
		}
		if r.Reads == 0 {
			r.ID = id
		} else if id != r.ID {
			r.Mismatched++
		}
		r.Reads++
	}
	r.Local = bus.Stats()
	return r, nil
}

func readJEDEC(ctx context.Context, bus *core.SharedSPI, retries int) ([3]byte, int, error) {
	var id [3]byte
	busy := 0
	for attempt := 1; ; attempt++ {
		err := bus.WithBorrow(func(b *core.SPIBorrow) error {
			rx := make([]byte, 4)
			if err := b.Tx([]byte{jedecReadID, 0, 0, 0}, rx); err != nil {
				return err
			}
			copy(id[:], rx[1:])
			return nil
		})
		if err == nil {
			return id, busy, nil
		}
		if !isBusy(err) {
			return id, busy, err
		}
		busy++
		if attempt >= retries {
			return id, busy, err
		}

		select {
		case <-ctx.Done():
			return id, busy, ctx.Err()
		case <-time.After(time.Duration(attempt) * time.Millisecond):
		}
	}
}

func isBusy(err error) bool {
	return errors.Is(err, core.ErrAlreadyBorrowed) || errors.Is(err, serial.ErrRemoteBusy)
}
