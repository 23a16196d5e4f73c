package sei

import (
	"testing"

	mch264 "github.com/bluenviron/mediacommon/v2/pkg/codecs/h264"
	"github.com/stretchr/testify/require"
)

var casesDisplayTime = []struct {
	name string
	dt   DisplayTime
}{
	{
		"small values",
		DisplayTime{
			FrameTimestamp: 1000,
			DisplayTime:    5000,
		},
	},
	{
		"zero",
		DisplayTime{},
	},
	{
		"negative",
		DisplayTime{
			FrameTimestamp: -1,
			DisplayTime:    -123456789,
		},
	},
	{
		"emulation prevention",
		DisplayTime{
			FrameTimestamp: 0x0000000300000001,
			DisplayTime:    0x0000000000000002,
		},
	},
}

func TestDisplayTimeMarshalUnmarshal(t *testing.T) {
	for _, ca := range casesDisplayTime {
		t.Run(ca.name, func(t *testing.T) {
			nalu, err := ca.dt.Marshal()
			require.NoError(t, err)
			require.Equal(t, mch264.NALUTypeSEI, mch264.NALUType(nalu[0]&0x1F))

			var dec DisplayTime
			err = dec.Unmarshal(nalu)
			require.NoError(t, err)
			require.Equal(t, ca.dt, dec)
		})
	}
}

func TestDisplayTimeMarshalEmulationPrevention(t *testing.T) {
	nalu, err := DisplayTime{}.Marshal()
	require.NoError(t, err)

	for i := 0; i+2 < len(nalu); i++ {
		if nalu[i] == 0 && nalu[i+1] == 0 {
			require.Greater(t, nalu[i+2], byte(0x02))
		}
	}
}

func TestDisplayTimeUnmarshalOtherSEI(t *testing.T) {
	for _, ca := range []struct {
		name string
		nalu []byte
		err  error
	}{
		{
			"recovery point",
			[]byte{0x06, 0x06, 0x01, 0xc4, 0x80},
			ErrNotDisplayTime,
		},
		{
			"unregistered with another uuid",
			append(append([]byte{0x06, 0x05, 0x12},
				[]byte{
					0xdc, 0x45, 0xe9, 0xbd, 0xe6, 0xd9, 0x48, 0xb7,
					0x96, 0x2c, 0xd8, 0x20, 0xd9, 0x23, 0xee, 0xef,
				}...), 0x41, 0x42, 0x80),
			ErrNotDisplayTime,
		},
		{
			"header only",
			[]byte{0x06},
			ErrNotDisplayTime,
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			var dt DisplayTime
			err := dt.Unmarshal(ca.nalu)
			require.ErrorIs(t, err, ca.err)
		})
	}
}

func TestDisplayTimeUnmarshalErrors(t *testing.T) {
	for _, ca := range []struct {
		name string
		nalu []byte
		err  string
	}{
		{
			"empty",
			[]byte{},
			"empty NALU",
		},
		{
			"not SEI",
			[]byte{0x05, 0x01},
			"not a SEI NALU: 5",
		},
		{
			"truncated type",
			[]byte{0x06, 0xFF},
			"not enough bits",
		},
		{
			"truncated payload",
			[]byte{0x06, 0x05, 0x20, 0x01, 0x02},
			"payload size (32) exceeds available data (2)",
		},
	} {
		t.Run(ca.name, func(t *testing.T) {
			var dt DisplayTime
			err := dt.Unmarshal(ca.nalu)
			require.EqualError(t, err, ca.err)
		})
	}
}

func TestExtract(t *testing.T) {
	au, err := Insert([][]byte{
		{byte(mch264.NALUTypeAccessUnitDelimiter), 0xf0},
		{byte(mch264.NALUTypeSPS), 0x42, 0xc0, 0x28},
		{byte(mch264.NALUTypePPS), 0x06},
		{0x65, 0x88, 0x84}, // IDR
	}, DisplayTime{FrameTimestamp: 1010, DisplayTime: 5016})
	require.NoError(t, err)

	require.Len(t, au, 5)
	require.Equal(t, mch264.NALUTypeSEI, mch264.NALUType(au[3][0]&0x1F))
	require.Equal(t, mch264.NALUTypeIDR, mch264.NALUType(au[4][0]&0x1F))

	dt, err := Extract(au)
	require.NoError(t, err)
	require.Equal(t, &DisplayTime{FrameTimestamp: 1010, DisplayTime: 5016}, dt)
}

func TestExtractNone(t *testing.T) {
	dt, err := Extract([][]byte{
		{0x06, 0x06, 0x01, 0xc4, 0x80}, // recovery point SEI
		{0x41, 0x9a},                   // non-IDR
	})
	require.NoError(t, err)
	require.Nil(t, dt)
}

func TestExtractAnnexB(t *testing.T) {
	au, err := Insert([][]byte{
		{0x41, 0x9a, 0x22},
	}, DisplayTime{FrameTimestamp: 1000, DisplayTime: 5000})
	require.NoError(t, err)

	buf, err := mch264.AnnexB(au).Marshal()
	require.NoError(t, err)

	dt, err := ExtractAnnexB(buf)
	require.NoError(t, err)
	require.Equal(t, &DisplayTime{FrameTimestamp: 1000, DisplayTime: 5000}, dt)
}
