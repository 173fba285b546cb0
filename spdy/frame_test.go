// Copyright 2025 The packetd Authors
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package spdy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b := make([]byte, 0, len(s)/2)
	var hi byte
	have := false
	for _, r := range s {
		if r == ' ' {
			continue
		}
		var v byte
		switch {
		case r >= '0' && r <= '9':
			v = byte(r - '0')
		case r >= 'a' && r <= 'f':
			v = byte(r-'a') + 10
		case r >= 'A' && r <= 'F':
			v = byte(r-'A') + 10
		default:
			t.Fatalf("invalid hex rune %q", r)
		}
		if !have {
			hi = v
			have = true
			continue
		}
		b = append(b, hi<<4|v)
		have = false
	}
	require.False(t, have, "odd number of hex digits in %q", s)
	return b
}

// TestDecodeFrameHeaderPing 对应 spec §8 S1
func TestDecodeFrameHeaderPing(t *testing.T) {
	b := mustHex(t, "80 03 00 06 00 00 00 04 00 00 00 2A")
	hdr, payload, err := decodeFrameHeader(b)
	require.NoError(t, err)
	assert.True(t, hdr.Control)
	assert.Equal(t, uint16(3), hdr.Version)
	assert.Equal(t, FramePing, hdr.Type)
	assert.Equal(t, uint8(0), hdr.Flags)
	assert.Equal(t, uint32(4), hdr.Length)
	assert.Equal(t, frameHeaderLength+4, frameTotalSize(hdr.Length))

	ping, diag := decodePing(payload)
	require.Nil(t, diag)
	assert.Equal(t, uint32(42), ping.ID)
}

// TestDecodeFrameHeaderRstStream 对应 spec §8 S2
func TestDecodeFrameHeaderRstStream(t *testing.T) {
	b := mustHex(t, "80 03 00 03 00 00 00 08 00 00 00 07 00 00 00 05")
	hdr, payload, err := decodeFrameHeader(b)
	require.NoError(t, err)
	assert.Equal(t, FrameRstStream, hdr.Type)

	cur := newCursor(payload)
	streamID, err := cur.u32be()
	require.NoError(t, err)
	streamID &= streamIDMask
	rest, err := cur.bytes(cur.remaining())
	require.NoError(t, err)

	rst, diag := decodeRstStream(streamID, rest)
	require.Nil(t, diag)
	assert.Equal(t, uint32(7), rst.StreamID)
	assert.Equal(t, RstCancel, rst.Status)
	assert.Equal(t, "CANCEL", rst.Status.String())
}

// TestDecodeFrameHeaderWindowUpdate 对应 spec §8 S3
func TestDecodeFrameHeaderWindowUpdate(t *testing.T) {
	b := mustHex(t, "80 03 00 09 00 00 00 08 00 00 00 03 00 00 10 00")
	hdr, payload, err := decodeFrameHeader(b)
	require.NoError(t, err)
	assert.Equal(t, FrameWindowUpdate, hdr.Type)

	cur := newCursor(payload)
	streamID, err := cur.u32be()
	require.NoError(t, err)
	streamID &= streamIDMask
	rest, err := cur.bytes(cur.remaining())
	require.NoError(t, err)

	wu, diag := decodeWindowUpdate(streamID, rest)
	require.Nil(t, diag)
	assert.Equal(t, uint32(3), wu.StreamID)
	assert.Equal(t, uint32(4096), wu.DeltaWindow)
}

// TestDecodeFrameHeaderDataWithFin 对应 spec §8 S4
func TestDecodeFrameHeaderDataWithFin(t *testing.T) {
	b := append([]byte{0x00, 0x00, 0x00, 0x05, 0x01, 0x00, 0x00, 0x03}, []byte("abc")...)
	hdr, payload, err := decodeFrameHeader(b)
	require.NoError(t, err)
	assert.False(t, hdr.Control)
	assert.Equal(t, uint32(5), hdr.StreamID)
	assert.True(t, hdr.Flags&FlagFin != 0)

	conv := NewConversation(DefaultOptions())
	conv.streams.getOrCreate(5).saveInfo("text/plain", "", "identity")

	dp, diag := conv.decodeDataFrame(hdr.StreamID, hdr.Flags, payload, conv.allocFrameIndex())
	require.Nil(t, diag)
	require.True(t, dp.Delivered)
	assert.Equal(t, "abc", string(dp.Body))
}

// TestDecodeSettingsTruncated 对应 spec §8 S6
func TestDecodeSettingsTruncated(t *testing.T) {
	b := mustHex(t, "80 03 00 04 00 00 00 05 00 00 00 01 00")
	hdr, payload, err := decodeFrameHeader(b)
	require.NoError(t, err)
	assert.Equal(t, FrameSettings, hdr.Type)
	assert.Equal(t, frameHeaderLength+5, frameTotalSize(hdr.Length))

	_, diag := decodeSettings(hdr.Flags, payload)
	require.NotNil(t, diag)
	assert.Equal(t, KindMalformedSettings, diag.Kind)
}

func TestKnownFrameTypes(t *testing.T) {
	assert.True(t, knownFrameTypes(FrameSynStream))
	assert.True(t, knownFrameTypes(FrameCredential))
	assert.False(t, knownFrameTypes(FrameType(11)))
	assert.False(t, knownFrameTypes(FrameData))
}

func TestDecodeFrameHeaderTruncated(t *testing.T) {
	_, _, err := decodeFrameHeader([]byte{0x80, 0x03})
	require.Error(t, err)
}
