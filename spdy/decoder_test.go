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
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spdywire/spdydecode/internal/zerocopy"
)

// TestDecoderSplitFrame 对应 spec §8 S5: 把 PING 帧切成两段喂给 Decoder
// 第一次调用不应产出任何记录 第二次调用应该产出与一次性喂入完全相同的记录
func TestDecoderSplitFrame(t *testing.T) {
	ping := mustHex(t, "80 03 00 06 00 00 00 04 00 00 00 2A")

	conv := NewConversation(DefaultOptions())
	dec := NewDecoder(conv, nil)

	first := zerocopy.NewBuffer(ping[:4])
	records, err := dec.Decode(first, time.Now())
	require.NoError(t, err)
	assert.Empty(t, records)

	second := zerocopy.NewBuffer(ping[4:])
	records, err = dec.Decode(second, time.Now())
	require.NoError(t, err)
	require.Len(t, records, 1)

	rec := records[0]
	assert.Equal(t, FramePing, rec.Frame.Type)
	assert.Equal(t, uint32(4), rec.Frame.Length)
	pp, ok := rec.Payload.(*PingPayload)
	require.True(t, ok)
	assert.Equal(t, uint32(42), pp.ID)
}

// TestDecoderHeuristicReject 对应 spec §8 S7
func TestDecoderHeuristicReject(t *testing.T) {
	conv := NewConversation(DefaultOptions())
	dec := NewDecoder(conv, nil)

	garbage := []byte{0x7F, 0x01, 0x02, 0x03}
	buf := zerocopy.NewBuffer(garbage)
	records, err := dec.Decode(buf, time.Now())
	require.Error(t, err)
	assert.Nil(t, records)
	assert.Nil(t, dec.tail)
	assert.False(t, dec.detected)
}

// TestDecoderUnsupportedVersion 校验低于 MinVersion 的控制帧被标记为不支持但仍计入一条记录
func TestDecoderUnsupportedVersion(t *testing.T) {
	b := mustHex(t, "80 02 00 06 00 00 00 04 00 00 00 2A")
	conv := NewConversation(DefaultOptions())
	dec := NewDecoder(conv, nil)

	buf := zerocopy.NewBuffer(b)
	records, err := dec.Decode(buf, time.Now())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Len(t, records[0].Diagnostics, 1)
	assert.Equal(t, KindUnsupportedVersion, records[0].Diagnostics[0].Kind)
}

// TestDecoderVisitedReplayIsIdempotent 对应 spec §6.4 is_visited / §3
// idempotence for replay: 用 DecodeVisited 把同一段已捕获字节重新喂给 driver
// 并带回首次解码时分配到的 frameIndex 结果必须与首次解码完全一致 且不会
// 再次推进该方向的 zlib 流（第二次解码走 C3 memo 命中）
func TestDecoderVisitedReplayIsIdempotent(t *testing.T) {
	pairs := []NameValue{{Name: "method", Value: "GET"}, {Name: "url", Value: "/a"}}
	compressed := compressWithSyncFlush(t, buildNameValueBlock(pairs))
	// SYN_STREAM payload: streamID(4) + assoc_stream_id(4) + priority/unused(1) + slot(1) + header block
	payload := append([]byte{0, 0, 0, 1, 0, 0, 0, 0, 0x20, 0x00}, compressed...)

	length := len(payload)
	frame := []byte{0x80, 0x03, 0x00, 0x01, 0x00, byte(length >> 16), byte(length >> 8), byte(length)}
	frame = append(frame, payload...)

	conv := NewConversation(DefaultOptions())
	dec := NewDecoder(conv, nil)

	first := zerocopy.NewBuffer(append([]byte{}, frame...))
	records, err := dec.Decode(first, time.Now())
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Empty(t, records[0].Diagnostics)
	firstIdx := records[0].FrameIndex

	second := zerocopy.NewBuffer(append([]byte{}, frame...))
	replayed, err := dec.DecodeVisited(second, time.Now(), firstIdx)
	require.NoError(t, err)
	require.Len(t, replayed, 1)
	require.Empty(t, replayed[0].Diagnostics)
	assert.Equal(t, firstIdx, replayed[0].FrameIndex)

	origPayload, ok := records[0].Payload.(*SynStreamPayload)
	require.True(t, ok)
	replayedPayload, ok := replayed[0].Payload.(*SynStreamPayload)
	require.True(t, ok)
	assert.Equal(t, origPayload.Headers.Pairs, replayedPayload.Headers.Pairs)
}

// TestDecoderMultipleFramesOneCall 多个帧拼接在一次输入里应全部解析
func TestDecoderMultipleFramesOneCall(t *testing.T) {
	ping := mustHex(t, "80 03 00 06 00 00 00 04 00 00 00 2A")
	rst := mustHex(t, "80 03 00 03 00 00 00 08 00 00 00 07 00 00 00 05")

	combined := append(append([]byte{}, ping...), rst...)

	conv := NewConversation(DefaultOptions())
	dec := NewDecoder(conv, nil)

	buf := zerocopy.NewBuffer(combined)
	records, err := dec.Decode(buf, time.Now())
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, FramePing, records[0].Frame.Type)
	assert.Equal(t, FrameRstStream, records[1].Frame.Type)
}
