package media

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"

	"time"

	"github.com/asticode/go-astits"
)

// ErrNoPCR indicates the transport stream carried no program clock
// references, so its duration cannot be measured.
var ErrNoPCR = errors.New("media: no PCR found in transport stream")

// ProbeTS measures the wall-clock duration of a sealed MPEG-TS capture by
// demuxing it and taking the spread between the first and last program clock
// references. Captures are written append-only with no trailer, so container
// metadata is useless; the PCRs are the only reliable clock.
func ProbeTS(ctx context.Context, path string) (time.Duration, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("opening capture: %w", err)
	}
	defer f.Close()

	dmx := astits.NewDemuxer(ctx, bufio.NewReaderSize(f, 1<<20))

	var (
		first time.Duration
		last  time.Duration
		seen  bool
	)
	for {
		pkt, err := dmx.NextPacket()
		if err != nil {
			if errors.Is(err, astits.ErrNoMorePackets) {
				break
			}
			// A truncated tail is normal for a killed capture; keep what
			// was read so far.
			if seen {
				break
			}
			return 0, fmt.Errorf("demuxing capture: %w", err)
		}

		af := pkt.AdaptationField
		if af == nil || !af.HasPCR || af.PCR == nil {
			continue
		}
		pcr := af.PCR.Duration()
		if !seen {
			first = pcr
			seen = true
		}
		last = pcr
	}

	if !seen {
		return 0, ErrNoPCR
	}
	if last < first {
		// PCR wrapped (27 MHz clock wraps every ~26.5 h).
		return 0, fmt.Errorf("media: PCR wrap in %s", path)
	}
	return last - first, nil
}
