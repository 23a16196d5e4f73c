// Package sei contains a codec for display-time SEI messages.
//
// A display time is carried by a user data unregistered SEI message
// (payload type 5) identified by DisplayTimeUUID, followed by the frame
// timestamp and the display time, both as big-endian 64-bit integers.
package sei

import (
	"encoding/binary"
	"errors"
	"fmt"

	mch264 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/google/uuid"
)

const (
	payloadTypeUserDataUnregistered = 5
	displayTimePayloadSize          = 16 + 8 + 8
	rbspStopBit                     = 0x80
)

// DisplayTimeUUID identifies display-time messages.
var DisplayTimeUUID = uuid.MustParse("6f0c3a52-8d1e-4b57-9a1a-5d3c2f7e4b10")

// ErrNotDisplayTime is returned when a NALU does not carry a display time.
var ErrNotDisplayTime = errors.New("NALU does not contain a display time")

// DisplayTime is a display time bound to a frame.
type DisplayTime struct {
	FrameTimestamp int64
	DisplayTime    int64
}

func writeSEIValue(buf []byte, v int) []byte {
	for v >= 255 {
		buf = append(buf, 0xFF)
		v -= 255
	}
	return append(buf, byte(v))
}

func readSEIValue(buf []byte) (int, []byte, error) {
	v := 0
	for {
		if len(buf) == 0 {
			return 0, nil, fmt.Errorf("not enough bits")
		}
		b := buf[0]
		buf = buf[1:]
		v += int(b)
		if b != 0xFF {
			return v, buf, nil
		}
	}
}

func emulationPreventionAdd(buf []byte) []byte {
	out := make([]byte, 0, len(buf)+len(buf)/2)
	zeros := 0

	for _, b := range buf {
		if zeros >= 2 && b <= 3 {
			out = append(out, 3)
			zeros = 0
		}

		out = append(out, b)

		if b == 0 {
			zeros++
		} else {
			zeros = 0
		}
	}

	return out
}

// Marshal encodes a display time into a SEI NALU.
func (d DisplayTime) Marshal() ([]byte, error) {
	rbsp := make([]byte, 0, 4+displayTimePayloadSize)
	rbsp = writeSEIValue(rbsp, payloadTypeUserDataUnregistered)
	rbsp = writeSEIValue(rbsp, displayTimePayloadSize)

	id, err := DisplayTimeUUID.MarshalBinary()
	if err != nil {
		return nil, err
	}
	rbsp = append(rbsp, id...)
	rbsp = binary.BigEndian.AppendUint64(rbsp, uint64(d.FrameTimestamp))
	rbsp = binary.BigEndian.AppendUint64(rbsp, uint64(d.DisplayTime))
	rbsp = append(rbsp, rbspStopBit)

	return append([]byte{byte(mch264.NALUTypeSEI)}, emulationPreventionAdd(rbsp)...), nil
}

// Unmarshal decodes a display time from a SEI NALU.
// It returns ErrNotDisplayTime when the NALU is valid but carries no display time.
func (d *DisplayTime) Unmarshal(nalu []byte) error {
	if len(nalu) < 1 {
		return fmt.Errorf("empty NALU")
	}

	typ := mch264.NALUType(nalu[0] & 0x1F)
	if typ != mch264.NALUTypeSEI {
		return fmt.Errorf("not a SEI NALU: %d", typ)
	}

	buf := mch264.EmulationPreventionRemove(nalu[1:])

	// more_rbsp_data(): stop at the trailing bits
	for len(buf) > 1 || (len(buf) == 1 && buf[0] != rbspStopBit) {
		var payloadType, payloadSize int
		var err error

		payloadType, buf, err = readSEIValue(buf)
		if err != nil {
			return err
		}

		payloadSize, buf, err = readSEIValue(buf)
		if err != nil {
			return err
		}

		if payloadSize > len(buf) {
			return fmt.Errorf("payload size (%d) exceeds available data (%d)", payloadSize, len(buf))
		}

		payload := buf[:payloadSize]
		buf = buf[payloadSize:]

		if payloadType != payloadTypeUserDataUnregistered || payloadSize < 16 {
			continue
		}

		var id uuid.UUID
		copy(id[:], payload[:16])
		if id != DisplayTimeUUID {
			continue
		}

		if payloadSize != displayTimePayloadSize {
			return fmt.Errorf("invalid display time payload size: %d", payloadSize)
		}

		d.FrameTimestamp = int64(binary.BigEndian.Uint64(payload[16:24]))
		d.DisplayTime = int64(binary.BigEndian.Uint64(payload[24:32]))
		return nil
	}

	return ErrNotDisplayTime
}
