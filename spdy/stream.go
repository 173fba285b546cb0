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

// dataChunk 是一个尚未归档的 DATA 帧负载片段 spec §3 "data_chunks"
type dataChunk struct {
	bytes      []byte
	frameIndex uint64
}

// StreamInfo 记录单个 Stream 跨帧累积的元数据 spec §3 "Stream info"
type StreamInfo struct {
	StreamID uint32

	ContentType       string
	ContentTypeParams string
	ContentEncoding   string

	chunks         []dataChunk
	Assembled      []byte
	DataFrameCount uint32

	registered bool // save_stream_info 是否已经调用过 spec §4.5 first-writer-wins
}

// registry 是单个会话方向无关的 Stream 映射表 spec §3 "streams"
//
// key 为屏蔽过保留位的 31 位 stream-id
type registry struct {
	streams map[uint32]*StreamInfo
}

func newRegistry() *registry {
	return &registry{streams: make(map[uint32]*StreamInfo)}
}

// getOrCreate 返回给定 stream-id 对应的 StreamInfo 不存在则创建一个空壳
func (r *registry) getOrCreate(streamID uint32) *StreamInfo {
	if si, ok := r.streams[streamID]; ok {
		return si
	}
	si := &StreamInfo{StreamID: streamID}
	r.streams[streamID] = si
	return si
}

// get 返回 streamID 对应的 StreamInfo 不存在时返回 nil spec §4.5 get_stream_info
func (r *registry) get(streamID uint32) *StreamInfo {
	return r.streams[streamID]
}

// saveInfo 实现 spec §4.5 save_stream_info 的 first-writer-wins 语义
//
// 只会在该 stream 第一次被观察到 content-type/encoding 时生效 之后的调用
// 被忽略 —— 违反这一前提（同一个 slot 被二次写入不同的值）在 spec 中被视为
// 协议错误 这里选择静默忽略而不是 panic 因为抓包数据本来就可能重复或乱序
func (si *StreamInfo) saveInfo(contentType, contentTypeParams, contentEncoding string) {
	if si.registered {
		return
	}
	si.ContentType = contentType
	si.ContentTypeParams = contentTypeParams
	si.ContentEncoding = contentEncoding
	si.registered = true
}

// appendChunk 在 stream 上累积一个新的 DATA 片段 spec §4.6 step 1
func (si *StreamInfo) appendChunk(b []byte, frameIndex uint64) {
	owned := make([]byte, len(b))
	copy(owned, b)
	si.chunks = append(si.chunks, dataChunk{bytes: owned, frameIndex: frameIndex})
}

// concatChunks 拼接所有累积的片段加上最后一帧的负载 spec §4.6 step 3
//
// 没有累积片段时直接返回 last 恰好只有一个片段且 last 为空时直接返回该片段
// 这两种情况都不拷贝
func (si *StreamInfo) concatChunks(last []byte) []byte {
	if len(si.chunks) == 0 {
		return last
	}
	if len(si.chunks) == 1 && len(last) == 0 {
		return si.chunks[0].bytes
	}

	total := len(last)
	for _, c := range si.chunks {
		total += len(c.bytes)
	}
	out := make([]byte, 0, total)
	for _, c := range si.chunks {
		out = append(out, c.bytes...)
	}
	out = append(out, last...)
	return out
}

// releaseChunks 释放片段存储 计数保留 spec §4.6 step 4 / §9 open question
//
// 源实现注释掉了这一步的释放（可能是为了让后续展示仍能重放分片） 这里遵循
// spec 的选择: 保留 chunks 直到 stream 记录本身被销毁 因此这个方法目前未被
// 默认调用路径使用 仅供需要主动回收内存的调用方显式触发
func (si *StreamInfo) releaseChunks() {
	si.chunks = nil
}
