package simulator

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bluenviron/framesync/internal/test"
)

type pair struct {
	pts         int64
	displayTime int64
}

type dummyReceiver struct {
	mutex sync.Mutex
	pairs []pair
}

func (r *dummyReceiver) OnDisplayTime(framePTS int64, displayTime int64) {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	r.pairs = append(r.pairs, pair{framePTS, displayTime})
}

func (r *dummyReceiver) count() int {
	r.mutex.Lock()
	defer r.mutex.Unlock()
	return len(r.pairs)
}

type dummySurface struct {
	mutex      sync.Mutex
	timestamps []int64
}

func (s *dummySurface) Publish(timestamp int64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.timestamps = append(s.timestamps, timestamp)
}

func waitFor(t *testing.T, cond func() bool) {
	for i := 0; i < 200; i++ {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("timed out")
}

func TestDecoder(t *testing.T) {
	surface := &dummySurface{}
	receiver := &dummyReceiver{}

	d := &Decoder{
		FrameRate:           200,
		TimestampMultiplier: 1000,
		Seed:                1,
		Surface:             surface,
		Receiver:            receiver,
		Parent:              test.NilLogger,
	}
	err := d.Initialize()
	require.NoError(t, err)

	waitFor(t, func() bool { return receiver.count() >= 10 })
	d.Close()

	st := d.Stats()
	require.Equal(t, uint64(0), st.Dropped)
	require.Len(t, surface.timestamps, int(st.Frames))

	// metadata of frames surfaced right before Close() may be discarded.
	require.LessOrEqual(t, len(receiver.pairs), len(surface.timestamps))

	for i, p := range receiver.pairs {
		require.Equal(t, surface.timestamps[i], p.pts*1000)

		if i > 0 {
			require.Equal(t, int64(5000), p.pts-receiver.pairs[i-1].pts)
			require.Greater(t, p.displayTime, receiver.pairs[i-1].displayTime)
		}
	}
}

func TestDecoderDrop(t *testing.T) {
	surface := &dummySurface{}
	receiver := &dummyReceiver{}

	d := &Decoder{
		FrameRate: 500,
		DropRatio: 0.5,
		Seed:      2,
		Surface:   surface,
		Receiver:  receiver,
		Parent:    test.NilLogger,
	}
	err := d.Initialize()
	require.NoError(t, err)

	waitFor(t, func() bool { return d.Stats().Frames >= 50 })
	d.Close()

	st := d.Stats()
	require.NotZero(t, st.Dropped)
	require.Less(t, st.Dropped, st.Frames)
	require.Len(t, surface.timestamps, int(st.Frames-st.Dropped))
}

func TestDecoderMetadataDelay(t *testing.T) {
	surface := &dummySurface{}
	receiver := &dummyReceiver{}

	d := &Decoder{
		FrameRate:     10,
		MetadataDelay: 200 * time.Millisecond,
		Surface:       surface,
		Receiver:      receiver,
		Parent:        test.NilLogger,
	}
	err := d.Initialize()
	require.NoError(t, err)
	defer d.Close()

	waitFor(t, func() bool {
		surface.mutex.Lock()
		defer surface.mutex.Unlock()
		return len(surface.timestamps) >= 1
	})

	require.Equal(t, 0, receiver.count())

	waitFor(t, func() bool { return receiver.count() >= 1 })
}

func TestDecoderError(t *testing.T) {
	surface := &dummySurface{}
	receiver := &dummyReceiver{}

	d := &Decoder{
		FrameRate: 100,
		Surface:   surface,
		Receiver:  receiver,
		Parent:    test.NilLogger,
		marshalAccessUnit: func([][]byte) ([]byte, error) {
			return nil, fmt.Errorf("marshal failed")
		},
	}
	err := d.Initialize()
	require.NoError(t, err)
	defer d.Close()

	select {
	case err = <-d.Error():
		require.EqualError(t, err, "unable to decode frame: marshal failed")
	case <-time.After(2 * time.Second):
		t.Errorf("timed out")
	}

	require.Equal(t, uint64(1), d.Stats().Frames)
	require.Len(t, surface.timestamps, 0)
	require.Equal(t, 0, receiver.count())
}

func TestDecoderInvalidParams(t *testing.T) {
	for _, ca := range []struct {
		name string
		d    *Decoder
		err  string
	}{
		{
			"frame rate",
			&Decoder{},
			"invalid frame rate: 0",
		},
		{
			"drop ratio",
			&Decoder{FrameRate: 30, DropRatio: 1},
			"invalid drop ratio: 1",
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			ca.d.Parent = test.NilLogger
			err := ca.d.Initialize()
			require.EqualError(t, err, ca.err)
		})
	}
}
