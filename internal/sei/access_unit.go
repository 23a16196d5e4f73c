package sei

import (
	"errors"

	mch264 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
)

func isSlice(typ mch264.NALUType) bool {
	switch typ {
	case mch264.NALUTypeNonIDR, mch264.NALUTypeDataPartitionA, mch264.NALUTypeIDR:
		return true
	}
	return false
}

// Extract returns the display time carried by an access unit.
// It returns nil when the access unit does not carry any.
func Extract(au [][]byte) (*DisplayTime, error) {
	for _, nalu := range au {
		if len(nalu) == 0 || mch264.NALUType(nalu[0]&0x1F) != mch264.NALUTypeSEI {
			continue
		}

		var dt DisplayTime
		err := dt.Unmarshal(nalu)
		if err != nil {
			if errors.Is(err, ErrNotDisplayTime) {
				continue
			}
			return nil, err
		}

		return &dt, nil
	}

	return nil, nil
}

// ExtractAnnexB returns the display time carried by an Annex-B access unit.
func ExtractAnnexB(buf []byte) (*DisplayTime, error) {
	var au mch264.AnnexB
	err := au.Unmarshal(buf)
	if err != nil {
		return nil, err
	}

	return Extract(au)
}

// Insert adds a display-time SEI to an access unit, before the first slice.
func Insert(au [][]byte, dt DisplayTime) ([][]byte, error) {
	nalu, err := dt.Marshal()
	if err != nil {
		return nil, err
	}

	pos := len(au)
	for i, n := range au {
		if len(n) != 0 && isSlice(mch264.NALUType(n[0]&0x1F)) {
			pos = i
			break
		}
	}

	out := make([][]byte, 0, len(au)+1)
	out = append(out, au[:pos]...)
	out = append(out, nalu)
	out = append(out, au[pos:]...)
	return out, nil
}
