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
)

func TestRegistryGetOrCreateReturnsSameInstance(t *testing.T) {
	r := newRegistry()
	a := r.getOrCreate(7)
	b := r.getOrCreate(7)
	assert.Same(t, a, b)
	assert.Equal(t, uint32(7), a.StreamID)
}

func TestRegistryGetMissingReturnsNil(t *testing.T) {
	r := newRegistry()
	assert.Nil(t, r.get(42))
}

func TestSaveInfoFirstWriterWins(t *testing.T) {
	si := &StreamInfo{StreamID: 1}
	si.saveInfo("text/html", "charset=utf-8", "gzip")
	si.saveInfo("application/json", "", "identity")

	assert.Equal(t, "text/html", si.ContentType)
	assert.Equal(t, "charset=utf-8", si.ContentTypeParams)
	assert.Equal(t, "gzip", si.ContentEncoding)
}

func TestAppendChunkCopiesBytes(t *testing.T) {
	si := &StreamInfo{StreamID: 1}
	src := []byte("abc")
	si.appendChunk(src, 0)
	src[0] = 'z'

	assert.Equal(t, "abc", string(si.chunks[0].bytes))
}

func TestConcatChunksNoChunksReturnsLast(t *testing.T) {
	si := &StreamInfo{StreamID: 1}
	out := si.concatChunks([]byte("only"))
	assert.Equal(t, "only", string(out))
}

func TestConcatChunksSingleChunkEmptyLastAvoidsCopy(t *testing.T) {
	si := &StreamInfo{StreamID: 1}
	si.appendChunk([]byte("solo"), 0)
	out := si.concatChunks(nil)
	assert.Same(t, &si.chunks[0].bytes[0], &out[0])
}

func TestConcatChunksMultipleChunksInOrder(t *testing.T) {
	si := &StreamInfo{StreamID: 1}
	si.appendChunk([]byte("a"), 0)
	si.appendChunk([]byte("b"), 1)
	out := si.concatChunks([]byte("c"))
	assert.Equal(t, "abc", string(out))
}

func TestReleaseChunksClearsStorage(t *testing.T) {
	si := &StreamInfo{StreamID: 1}
	si.appendChunk([]byte("a"), 0)
	si.releaseChunks()
	assert.Nil(t, si.chunks)
}
