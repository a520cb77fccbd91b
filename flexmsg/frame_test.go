package flexmsg

import (
	"bytes"
	"encoding/binary"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestWrap(t *testing.T) {
	require := require.New(t)

	frame := Wrap([]byte("<a/>"))
	require.Equal([]byte{0x5E, 0xBA, 0x01, 0x00, 0x04, 0x00, 0x00, 0x00, '<', 'a', '/', '>'}, frame)
}

func TestUnwrap_RoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte("<flexData/>"),
		{},
		bytes.Repeat([]byte{0xAB}, 4096),
	}

	for _, p := range payloads {
		got, err := Unwrap(Wrap(p))
		require.NoError(t, err)
		require.Equal(t, [][]byte{p}, got)
	}
}

func TestUnwrap_Concatenated(t *testing.T) {
	require := require.New(t)

	var buf []byte
	want := [][]byte{[]byte("first"), []byte("second"), []byte("third")}
	for _, p := range want {
		buf = AppendFrame(buf, p)
	}

	got, err := Unwrap(buf)
	require.NoError(err)
	require.Equal(want, got)

	got, err = Unwrap(nil)
	require.NoError(err)
	require.Empty(got)
}

func TestUnwrap_Errors(t *testing.T) {
	require := require.New(t)

	good := Wrap([]byte("ok"))

	bad := append([]byte{}, good...)
	bad[0] = 0xFF
	_, err := Unwrap(bad)
	require.ErrorIs(err, ErrBadMagic)
	require.ErrorIs(err, ErrFraming)

	payloads, err := Unwrap(append(append([]byte{}, good...), good[:5]...))
	require.ErrorIs(err, ErrTruncatedFrame)
	require.Equal([][]byte{[]byte("ok")}, payloads)

	_, err = Unwrap(good[:len(good)-1])
	require.ErrorIs(err, ErrTruncatedFrame)
}

func TestFrameReader_Reassembles(t *testing.T) {
	require := require.New(t)

	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	stream := append(Wrap([]byte("<one/>")), Wrap([]byte("<two/>"))...)

	// write the stream one byte at a time to force partial reads
	go func() {
		for i := range stream {
			if _, err := server.Write(stream[i : i+1]); err != nil {
				return
			}
		}
	}()

	fr := NewFrameReader(client, time.Second)

	p, err := fr.ReadFrame()
	require.NoError(err)
	require.Equal("<one/>", string(p))

	p, err = fr.ReadFrame()
	require.NoError(err)
	require.Equal("<two/>", string(p))
}

func TestFrameReader_Errors(t *testing.T) {
	t.Run("bad magic", func(t *testing.T) {
		fr := NewFrameReader(bytes.NewReader([]byte{1, 2, 3, 4, 0, 0, 0, 0}), 0)
		_, err := fr.ReadFrame()
		require.ErrorIs(t, err, ErrBadMagic)
	})

	t.Run("too large", func(t *testing.T) {
		header := binary.LittleEndian.AppendUint32(nil, Magic)
		header = binary.LittleEndian.AppendUint32(header, MaxPayloadSize+1)
		fr := NewFrameReader(bytes.NewReader(header), 0)
		_, err := fr.ReadFrame()
		require.ErrorIs(t, err, ErrFrameTooLarge)
	})

	t.Run("eof between frames", func(t *testing.T) {
		fr := NewFrameReader(bytes.NewReader(Wrap([]byte("x"))), 0)
		_, err := fr.ReadFrame()
		require.NoError(t, err)
		_, err = fr.ReadFrame()
		require.ErrorIs(t, err, io.EOF)
	})

	t.Run("eof inside payload", func(t *testing.T) {
		frame := Wrap([]byte("payload"))
		fr := NewFrameReader(bytes.NewReader(frame[:len(frame)-2]), 0)
		_, err := fr.ReadFrame()
		require.ErrorIs(t, err, io.ErrUnexpectedEOF)
	})

	t.Run("payload timeout", func(t *testing.T) {
		client, server := net.Pipe()
		defer client.Close()
		defer server.Close()

		go func() {
			// header announces 10 bytes but only 2 arrive
			_, _ = server.Write(binary.LittleEndian.AppendUint32(binary.LittleEndian.AppendUint32(nil, Magic), 10))
			_, _ = server.Write([]byte("ab"))
		}()

		fr := NewFrameReader(client, 50*time.Millisecond)
		_, err := fr.ReadFrame()
		require.Error(t, err)

		var netErr net.Error
		require.ErrorAs(t, err, &netErr)
		require.True(t, netErr.Timeout())
	})
}
