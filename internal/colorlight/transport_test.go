package colorlight

import (
	"errors"
	"io"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeChuckRoast/LedPanels/internal/frame"
)

// recordingConn captures every frame with its send time.
type recordingConn struct {
	frames [][]byte
	at     []time.Time
	failOn int // 1-based send attempt that fails; 0 never fails
	calls  int
	closes int
}

func (c *recordingConn) WriteFrame(b []byte) error {
	c.calls++
	if c.failOn > 0 && c.calls == c.failOn {
		return errors.New("link down")
	}
	c.frames = append(c.frames, append([]byte(nil), b...))
	c.at = append(c.at, time.Now())
	return nil
}

func (c *recordingConn) Close() error {
	c.closes++
	return nil
}

func quietLogger() zerolog.Logger { return zerolog.New(io.Discard) }

func scenarioBuffer(t *testing.T) *frame.Buffer {
	t.Helper()
	buf, err := frame.New(4, 2)
	require.NoError(t, err)
	row0 := [][3]uint8{{255, 0, 0}, {0, 255, 0}, {0, 0, 255}, {10, 20, 30}}
	row1 := [][3]uint8{{1, 2, 3}, {4, 5, 6}, {7, 8, 9}, {9, 9, 9}}
	for x, p := range row0 {
		buf.SetPixel(x, 0, p[0], p[1], p[2])
	}
	for x, p := range row1 {
		buf.SetPixel(x, 1, p[0], p[1], p[2])
	}
	return buf
}

func TestPresentFrameOrder(t *testing.T) {
	conn := &recordingConn{}
	tx := NewTransport(conn, WithLogger(quietLogger()))

	require.NoError(t, tx.Present(scenarioBuffer(t)))
	require.Len(t, conn.frames, 4)

	row0 := conn.frames[0]
	assert.Equal(t, byte(0x55), row0[12])
	assert.Equal(t, []byte{0x00, 0x00}, row0[13:15], "row index")
	if diff := cmp.Diff([]byte{
		0x00, 0x00, 0xFF,
		0x00, 0xFF, 0x00,
		0xFF, 0x00, 0x00,
		0x1E, 0x14, 0x0A,
	}, row0[RowFrameOverhead:]); diff != "" {
		t.Fatalf("row 0 pixels (-want +got):\n%s", diff)
	}

	row1 := conn.frames[1]
	assert.Equal(t, []byte{0x00, 0x01}, row1[13:15], "row index")
	if diff := cmp.Diff([]byte{
		0x03, 0x02, 0x01,
		0x06, 0x05, 0x04,
		0x09, 0x08, 0x07,
		0x09, 0x09, 0x09,
	}, row1[RowFrameOverhead:]); diff != "" {
		t.Fatalf("row 1 pixels (-want +got):\n%s", diff)
	}

	assert.Equal(t, EncodeLinkInit1(), conn.frames[2])
	assert.Equal(t, EncodeLinkInit2(), conn.frames[3])

	for i := 1; i < len(conn.at); i++ {
		assert.GreaterOrEqual(t, conn.at[i].Sub(conn.at[i-1]), time.Millisecond, "gap before frame %d", i)
	}
}

func TestPresentSleepsAfterEveryRowAndBetweenCommits(t *testing.T) {
	conn := &recordingConn{}
	var sleeps []time.Duration
	tx := NewTransport(conn, WithLogger(quietLogger()), WithSleep(func(d time.Duration) { sleeps = append(sleeps, d) }))

	buf, err := frame.New(8, 5)
	require.NoError(t, err)
	require.NoError(t, tx.Present(buf))

	assert.Len(t, conn.frames, 5+2)
	assert.Len(t, sleeps, 5+1)
	for _, d := range sleeps {
		assert.Equal(t, FrameGap, d)
	}
}

func TestPresentSplitsWideRows(t *testing.T) {
	conn := &recordingConn{}
	tx := NewTransport(conn, WithLogger(quietLogger()), WithSleep(func(time.Duration) {}))

	buf, err := frame.New(600, 1)
	require.NoError(t, err)
	for x := 0; x < 600; x++ {
		buf.SetPixel(x, 0, byte(x), 0, 0)
	}
	require.NoError(t, tx.Present(buf))

	require.Len(t, conn.frames, 2+2)
	first, second := conn.frames[0], conn.frames[1]
	assert.Equal(t, []byte{0x00, 0x00, 0x01, 0xF1}, first[15:19], "offset 0, 497 pixels")
	assert.Equal(t, []byte{0x01, 0xF1, 0x00, 0x67}, second[15:19], "offset 497, 103 pixels")
	assert.Len(t, first, RowFrameOverhead+497*3)
	assert.Len(t, second, RowFrameOverhead+103*3)
	// pixel 497 (red=497&0xFF) leads the second frame, as B,G,R
	assert.Equal(t, []byte{0, 0, byte(497 & 0xFF)}, second[RowFrameOverhead:RowFrameOverhead+3])
}

func TestPresentStopsOnSendFailure(t *testing.T) {
	conn := &recordingConn{failOn: 2}
	tx := NewTransport(conn, WithLogger(quietLogger()), WithSleep(func(time.Duration) {}))

	buf, err := frame.New(4, 4)
	require.NoError(t, err)
	err = tx.Present(buf)

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Equal(t, KindTransport, KindOf(err))
	assert.Equal(t, 2, conn.calls, "one good row and one failing row")
	require.Len(t, conn.frames, 1)
	assert.Equal(t, byte(0x55), conn.frames[0][12])

	// the session survives for a caller-driven retry
	conn.failOn = 0
	require.NoError(t, tx.Present(buf))
}

func TestCloseIsIdempotentAndBlocksSends(t *testing.T) {
	conn := &recordingConn{}
	tx := NewTransport(conn, WithLogger(quietLogger()))

	require.NoError(t, tx.Close())
	require.NoError(t, tx.Close())
	assert.Equal(t, 1, conn.closes)

	err := tx.SendFrame(EncodeLinkInit1())
	assert.ErrorIs(t, err, ErrClosed)
	assert.ErrorIs(t, err, ErrTransport)
	assert.Zero(t, conn.calls)
}

func TestOpenErrorKinds(t *testing.T) {
	orig := openConn
	defer func() { openConn = orig }()

	cases := []struct {
		kind     Kind
		sentinel error
	}{
		{KindConfiguration, ErrConfiguration},
		{KindPermission, ErrPermission},
		{KindInterface, ErrInterface},
	}
	for _, tc := range cases {
		t.Run(tc.kind.String(), func(t *testing.T) {
			openConn = func(iface string) (Conn, error) {
				return nil, &Error{Kind: tc.kind, Op: "open", Iface: iface, Err: errors.New("simulated")}
			}
			_, err := NewSurface("eth9", 64, 32)
			require.Error(t, err)
			assert.Equal(t, tc.kind, KindOf(err))
			for _, other := range cases {
				if other.kind != tc.kind {
					assert.NotErrorIs(t, err, other.sentinel)
				}
			}
			assert.ErrorIs(t, err, tc.sentinel)
		})
	}
}

func TestPermissionErrorGuidesOperator(t *testing.T) {
	err := &Error{Kind: KindPermission, Op: "socket", Iface: "eth0", Err: errors.New("operation not permitted")}
	assert.Contains(t, err.Error(), "root")
	assert.Contains(t, err.Error(), `"eth0"`)
}
