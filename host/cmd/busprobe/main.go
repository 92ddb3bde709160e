// Command busprobe reads the JEDEC id of every SPI device behind the
// firmware bus bridge, probing all chip selects at once.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"gobus/core"
	"gobus/host/serial"
)

var (
	device      = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud        = flag.Int("baud", 250000, "Baud rate (ignored for USB CDC)")
	chipSelects = flag.String("cs", "0", "Comma separated chip select indexes to probe")
	count       = flag.Int("count", 1, "Reads per chip select")
	retries     = flag.Int("retries", 20, "Attempts per read while the bus is busy")
	timeout     = flag.Duration("timeout", 500*time.Millisecond, "Per-request timeout")
	verbose     = flag.Bool("verbose", false, "Enable verbose output")
)

func main() {
	flag.Parse()

	css, err := parseChipSelects(*chipSelects)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	// Probes run on several goroutines; the event ring is single-context
	core.SetEventsEnabled(false)

	cfg := serial.DefaultConfig(*device)
	cfg.Baud = *baud
	clientCfg := serial.DefaultClientConfig()
	clientCfg.Timeout = *timeout

	if *verbose {
		fmt.Printf("Connecting to bridge on %s...\n", *device)
	}
	client, err := serial.Dial(cfg, clientCfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: Failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer client.Close()

	results := make([]probeResult, len(css))
	g, ctx := errgroup.WithContext(context.Background())
	for i, cs := range css {
		i, cs := i, cs
		bus := core.NewSharedSPI(client.SPI(cs), core.WithBusID(cs))
		g.Go(func() error {
			r, err := probeChipSelect(ctx, bus, *count, *retries)
			results[i] = r
			if err != nil {
				return fmt.Errorf("cs %d: %w", cs, err)
			}
			return nil
		})
	}
	probeErr := g.Wait()

	for i, cs := range css {
		r := results[i]
		fmt.Printf("cs %d: jedec=%02x%02x%02x reads=%d busy=%d mismatched=%d\n",
			cs, r.ID[0], r.ID[1], r.ID[2], r.Reads, r.Busy, r.Mismatched)
		if *verbose {
			st := r.Local
			fmt.Printf("      local borrows=%d releases=%d contended=%d\n",
				st.Borrows, st.Releases, st.Contended)
		}
	}

	if st, err := client.Status(); err == nil {
		fmt.Printf("remote bus: locked=%v borrows=%d releases=%d contended=%d\n",
			st.Locked, st.Borrows, st.Releases, st.Contended)
	} else if *verbose {
		fmt.Fprintf(os.Stderr, "Status failed: %v\n", err)
	}
	if *verbose {
		fmt.Printf("link breaker: %v\n", client.BreakerState())
	}

	if probeErr != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", probeErr)
		os.Exit(1)
	}
}

func parseChipSelects(s string) ([]uint8, error) {
	var css []uint8
	for _, field := range strings.Split(s, ",") {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		v, err := strconv.ParseUint(field, 10, 8)
		if err != nil {
			return nil, fmt.Errorf("invalid chip select %q: %w", field, err)
		}
		if v >= core.MaxChipSelects {
			return nil, fmt.Errorf("chip select %d out of range", v)
		}
		css = append(css, uint8(v))
	}
	if len(css) == 0 {
		return nil, fmt.Errorf("no chip selects given")
	}
	return css, nil
}
