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
	"bytes"
	"compress/gzip"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestFinTriggersAssembly 对应 spec §8 property 5: 任意切分 + 仅最后一帧带 FIN
func TestFinTriggersAssembly(t *testing.T) {
	conv := NewConversation(DefaultOptions())
	conv.streams.getOrCreate(3).saveInfo("application/octet-stream", "", "identity")

	parts := [][]byte{[]byte("hel"), []byte("lo "), []byte("wor")}
	for _, p := range parts {
		dp, diag := conv.decodeDataFrame(3, 0, p, conv.allocFrameIndex())
		require.Nil(t, diag)
		assert.False(t, dp.Delivered)
	}

	dp, diag := conv.decodeDataFrame(3, FlagFin, []byte("ld"), conv.allocFrameIndex())
	require.Nil(t, diag)
	require.True(t, dp.Delivered)
	assert.Equal(t, "hello world", string(dp.Body))
}

// TestBodyEncodingIdentity 对应 spec §8 property 6
func TestBodyEncodingIdentity(t *testing.T) {
	conv := NewConversation(DefaultOptions())
	conv.streams.getOrCreate(1).saveInfo("text/plain", "", "identity")

	dp, diag := conv.decodeDataFrame(1, FlagFin, []byte("unchanged"), conv.allocFrameIndex())
	require.Nil(t, diag)
	assert.Equal(t, "unchanged", string(dp.Body))
}

// TestBodyGzipDecompression 验证 C6 对 gzip entity body 的解压缩
func TestBodyGzipDecompression(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte("compressed payload"))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	conv := NewConversation(DefaultOptions())
	conv.streams.getOrCreate(9).saveInfo("text/plain", "", "gzip")

	dp, diag := conv.decodeDataFrame(9, FlagFin, buf.Bytes(), conv.allocFrameIndex())
	require.Nil(t, diag)
	assert.Equal(t, "compressed payload", string(dp.Body))
}

// TestBodyGzipDecompressionFailureRetainsBytes 解压缩失败时保留压缩字节并附带诊断
func TestBodyGzipDecompressionFailureRetainsBytes(t *testing.T) {
	conv := NewConversation(DefaultOptions())
	conv.streams.getOrCreate(9).saveInfo("text/plain", "", "gzip")

	garbage := []byte("not actually gzip")
	dp, diag := conv.decodeDataFrame(9, FlagFin, garbage, conv.allocFrameIndex())
	require.NotNil(t, diag)
	assert.Equal(t, KindBodyInflateFailed, diag.Kind)
	assert.Equal(t, garbage, dp.Body)
}

// TestDataFrameUnknownStreamPassThrough 对应 spec §4.6 "Policy corners"
func TestDataFrameUnknownStreamPassThrough(t *testing.T) {
	conv := NewConversation(DefaultOptions())

	dp, diag := conv.decodeDataFrame(99, 0, []byte("x"), conv.allocFrameIndex())
	require.Nil(t, diag)
	assert.False(t, dp.Delivered)

	dp, diag = conv.decodeDataFrame(99, FlagFin, []byte("y"), conv.allocFrameIndex())
	require.Nil(t, diag)
	assert.True(t, dp.Delivered)
	assert.Equal(t, "y", string(dp.Body))
	assert.Nil(t, conv.streams.get(99))
}

// TestZeroLengthFinStillAssembles 对应 spec §4.6 "length 0 and FIN=1 仍触发组装"
func TestZeroLengthFinStillAssembles(t *testing.T) {
	conv := NewConversation(DefaultOptions())
	conv.streams.getOrCreate(5).saveInfo("text/plain", "", "identity")

	_, diag := conv.decodeDataFrame(5, 0, []byte("partial"), conv.allocFrameIndex())
	require.Nil(t, diag)

	dp, diag := conv.decodeDataFrame(5, FlagFin, nil, conv.allocFrameIndex())
	require.Nil(t, diag)
	require.True(t, dp.Delivered)
	assert.Equal(t, "partial", string(dp.Body))
}

// TestAssembleDisabledOnlyCountsFrames spec §4.6 step 1(b)
func TestAssembleDisabledOnlyCountsFrames(t *testing.T) {
	opts := DefaultOptions()
	opts.AssembleEntityBodies = false
	conv := NewConversation(opts)
	conv.streams.getOrCreate(5).saveInfo("text/plain", "", "identity")

	dp, diag := conv.decodeDataFrame(5, 0, []byte("ignored"), conv.allocFrameIndex())
	require.Nil(t, diag)
	assert.False(t, dp.Delivered)

	si := conv.streams.get(5)
	assert.Equal(t, uint32(1), si.DataFrameCount)

	dp, diag = conv.decodeDataFrame(5, FlagFin, []byte("tail"), conv.allocFrameIndex())
	require.Nil(t, diag)
	require.True(t, dp.Delivered)
	assert.Equal(t, "tail", string(dp.Body))
	assert.Equal(t, uint32(2), si.DataFrameCount)
}

// TestBodySubdissectorDispatchedOnFin 对应 spec §4.6 step 3 / §6.4
func TestBodySubdissectorDispatchedOnFin(t *testing.T) {
	conv := NewConversation(DefaultOptions())
	conv.streams.getOrCreate(7).saveInfo("application/json", "charset=utf-8", "identity")

	var gotBody []byte
	var gotParams string
	reg := NewBodySubdissectorRegistry()
	reg.Register("application/json", func(body []byte, contentTypeParams string) {
		gotBody = body
		gotParams = contentTypeParams
	})
	conv.SetBodySubdissectors(reg)

	dp, diag := conv.decodeDataFrame(7, FlagFin, []byte(`{"a":1}`), conv.allocFrameIndex())
	require.Nil(t, diag)
	require.True(t, dp.Delivered)
	assert.Equal(t, `{"a":1}`, string(gotBody))
	assert.Equal(t, "charset=utf-8", gotParams)
}

// TestBodySubdissectorNotCalledWithoutFin 未到 FIN 时不应触发投递
func TestBodySubdissectorNotCalledWithoutFin(t *testing.T) {
	conv := NewConversation(DefaultOptions())
	conv.streams.getOrCreate(7).saveInfo("application/json", "", "identity")

	called := false
	reg := NewBodySubdissectorRegistry()
	reg.Register("application/json", func(body []byte, contentTypeParams string) { called = true })
	conv.SetBodySubdissectors(reg)

	_, diag := conv.decodeDataFrame(7, 0, []byte(`{"a":`), conv.allocFrameIndex())
	require.Nil(t, diag)
	assert.False(t, called)
}
