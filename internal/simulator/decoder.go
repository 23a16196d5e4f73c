package simulator

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sync/atomic"
	"time"

	mch264 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"

	"github.com/bluenviron/framesync/internal/asyncwriter"
	"github.com/bluenviron/framesync/internal/counterdumper"
	"github.com/bluenviron/framesync/internal/logger"
	"github.com/bluenviron/framesync/internal/sei"
)

const (
	metadataQueueSize = 256

	// time between the decoding of a frame and its presentation.
	presentationLatency = 40 * time.Millisecond
)

type decoderSurface interface {
	Publish(timestamp int64)
}

type decoderMetadataReceiver interface {
	OnDisplayTime(framePTS int64, displayTime int64)
}

// DecoderStats are decoder statistics.
type DecoderStats struct {
	Frames  uint64
	Dropped uint64
}

// Decoder produces frames at a fixed rate. Every frame carries a display-time
// SEI whose content is delivered on the metadata path, while the decoded image
// is surfaced on the image path.
type Decoder struct {
	FrameRate     float64
	DropRatio     float64
	MetadataDelay time.Duration
	// native image timestamps are expressed in units that are
	// TimestampMultiplier times finer than the frame timestamp.
	TimestampMultiplier int64
	Seed                uint64
	Surface             decoderSurface
	Receiver            decoderMetadataReceiver
	Parent              logger.Writer

	marshalAccessUnit func([][]byte) ([]byte, error)
	rand              *rand.Rand
	metadata          *asyncwriter.Writer
	drops     *counterdumper.CounterDumper
	ctx       context.Context
	ctxCancel func()

	frames  atomic.Uint64
	dropped atomic.Uint64

	// out
	err  chan error
	done chan struct{}
}

// Initialize initializes Decoder.
func (d *Decoder) Initialize() error {
	if d.FrameRate <= 0 {
		return fmt.Errorf("invalid frame rate: %v", d.FrameRate)
	}
	if d.DropRatio < 0 || d.DropRatio >= 1 {
		return fmt.Errorf("invalid drop ratio: %v", d.DropRatio)
	}
	if d.TimestampMultiplier == 0 {
		d.TimestampMultiplier = 1
	}
	if d.marshalAccessUnit == nil {
		d.marshalAccessUnit = func(au [][]byte) ([]byte, error) {
			return mch264.AnnexB(au).Marshal()
		}
	}

	d.rand = rand.New(rand.NewPCG(d.Seed, d.Seed^0x5DEECE66D))

	d.metadata = &asyncwriter.Writer{
		QueueSize: metadataQueueSize,
		Parent:    d,
	}
	err := d.metadata.Initialize()
	if err != nil {
		return err
	}

	d.drops = &counterdumper.CounterDumper{
		OnReport: func(v uint64) {
			d.Log(logger.Warn, "%d %s dropped", v, func() string {
				if v == 1 {
					return "frame"
				}
				return "frames"
			}())
		},
	}

	d.ctx, d.ctxCancel = context.WithCancel(context.Background())
	d.err = make(chan error, 1)
	d.done = make(chan struct{})

	d.Log(logger.Info, "started at %.2f fps", d.FrameRate)

	d.metadata.Start()
	d.drops.Start()
	go d.run()

	return nil
}

// Close closes Decoder.
func (d *Decoder) Close() {
	d.Log(logger.Info, "closing")
	d.ctxCancel()
	<-d.done
	d.metadata.Stop()
	d.drops.Stop()
}

// Log implements logger.Writer.
func (d *Decoder) Log(level logger.Level, format string, args ...interface{}) {
	d.Parent.Log(level, "[decoder] "+format, args...)
}

// Error returns a channel that is written when frame production stops
// because of an error.
func (d *Decoder) Error() chan error {
	return d.err
}

// Stats returns decoder statistics.
func (d *Decoder) Stats() DecoderStats {
	return DecoderStats{
		Frames:  d.frames.Load(),
		Dropped: d.dropped.Load(),
	}
}

func (d *Decoder) run() {
	defer close(d.done)

	period := time.Duration(float64(time.Second) / d.FrameRate)

	// frame timestamps and display times come from unrelated clocks.
	pts := d.rand.Int64N(1 << 32)
	displayEpoch := d.rand.Int64N(1 << 40)
	start := time.Now()

	ticker := time.NewTicker(period)
	defer ticker.Stop()

	for {
		select {
		case now := <-ticker.C:
			pts += period.Microseconds()
			displayTime := displayEpoch + int64(now.Sub(start)+presentationLatency)

			err := d.decodeFrame(now, pts, displayTime)
			if err != nil {
				d.err <- fmt.Errorf("unable to decode frame: %w", err)
				return
			}

		case <-d.ctx.Done():
			return
		}
	}
}

func (d *Decoder) decodeFrame(now time.Time, pts int64, displayTime int64) error {
	n := d.frames.Add(1)

	typ := mch264.NALUTypeNonIDR
	if n == 1 {
		typ = mch264.NALUTypeIDR
	}

	au, err := sei.Insert([][]byte{
		{byte(mch264.NALUTypeAccessUnitDelimiter), 0xF0},
		{byte(typ) | 0x60, 0x88, 0x84, 0x00, 0x33},
	}, sei.DisplayTime{
		FrameTimestamp: pts,
		DisplayTime:    displayTime,
	})
	if err != nil {
		return err
	}

	buf, err := d.marshalAccessUnit(au)
	if err != nil {
		return err
	}

	// the metadata path demuxes the SEI independently from the image path.
	dt, err := sei.ExtractAnnexB(buf)
	if err != nil {
		return err
	}
	if dt == nil {
		return fmt.Errorf("display time not found in access unit")
	}

	deliverAt := now.Add(d.MetadataDelay)

	d.metadata.Push(func() error {
		select {
		case <-time.After(time.Until(deliverAt)):
		case <-d.ctx.Done():
			return fmt.Errorf("terminated")
		}

		d.Receiver.OnDisplayTime(dt.FrameTimestamp, dt.DisplayTime)
		return nil
	})

	if d.rand.Float64() < d.DropRatio {
		d.dropped.Add(1)
		d.drops.Increase()
		return nil
	}

	d.Surface.Publish(pts * d.TimestampMultiplier)
	return nil
}
