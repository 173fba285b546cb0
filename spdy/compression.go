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
	"compress/zlib"
	"io"

	"github.com/cespare/xxhash/v2"

	"github.com/spdywire/spdydecode/internal/bufpool"
)

// defaultHeaderOutputSize 是解压缩输出缓冲区的初始容量 spec §4.3 step 4
const defaultHeaderOutputSize = 16 * 1024

// defaultMaxHeaderBlockSize 是解压缩后 header block 允许的默认上限
//
// spec §5/§9: 源实现未限制这个大小 这里按建议施加 1 MiB 的默认上限
const defaultMaxHeaderBlockSize = 1 << 20

// direction 标识 header 压缩状态所属的方向 spec §3
type direction uint8

const (
	dirRequest direction = iota
	dirReply
)

func (d direction) String() string {
	if d == dirRequest {
		return "request"
	}
	return "reply"
}

// inflater 封装了单个方向上长期存活的 zlib 解压缩状态
//
// 设计上与 CodeLingoBot-spdy/compression.go 的 Decompressor 同源: 一个持久的
// bytes.Buffer 作为输入 一个持久的 zlib.Reader 包裹它作为输出 每次解码仅
// Write 新的压缩字节 绝不重建 reader —— SPDY 编码端对每个 header block 使用
// Z_SYNC_FLUSH 写出 因此每次 Write 之后可以读出恰好对应这次输入产出的明文
// 而不会阻塞等待更多输入
//
// 一旦进入 poisoned 状态 就永远不再向这个 reader 写入或读取 —— 任何 reset
// 都会与对端的压缩器状态错位 使后续所有帧不可解 spec §4.3 step 5 / §9
type inflater struct {
	dir      direction
	in       *bytes.Buffer
	out      io.ReadCloser
	poisoned bool
}

func newInflater(dir direction) *inflater {
	return &inflater{dir: dir, in: &bytes.Buffer{}}
}

// Close 释放底层 zlib reader spec §5 ownership "Free() 聚合两个方向各自的释放错误"
//
// 尚未 lazily 初始化（从未收到过任何 header block）的 inflater Close 是 no-op
func (inf *inflater) Close() error {
	if inf.out == nil {
		return nil
	}
	err := inf.out.Close()
	inf.out = nil
	return err
}

// inflate 将 compressed 送入该方向的 zlib 流 并返回这次输入对应的全部明文
//
// 调用方必须保证 compressed 是一次完整的 SYN_STREAM/SYN_REPLY/HEADERS 帧的
// header block 片段 spec §4.3 step 2
func (inf *inflater) inflate(compressed []byte, maxSize int) ([]byte, error) {
	if inf.poisoned {
		return nil, newDecodeError(KindInflateFailed, "%s inflater already poisoned", inf.dir)
	}

	inf.in.Write(compressed)

	if inf.out == nil {
		r, err := zlib.NewReaderDict(inf.in, presetDictionary)
		if err != nil {
			if err == zlib.ErrDictionary {
				inf.poisoned = true
				return nil, newDecodeError(KindDictionaryMismatch,
					"%s direction requested a dictionary that does not match ours (want adler32=%08x)",
					inf.dir, dictionaryAdler)
			}
			inf.poisoned = true
			return nil, newDecodeError(KindInflateFailed, "%s inflater init failed: %v", inf.dir, err)
		}
		inf.out = r
	}

	acc := bufpool.Acquire()
	defer bufpool.Release(acc)

	out := make([]byte, defaultHeaderOutputSize)
	for {
		n, err := inf.out.Read(out)
		if n > 0 {
			acc.Write(out[:n])
			if acc.Len() > maxSize {
				inf.poisoned = true
				return nil, newDecodeError(KindOversizedHeaderBlock,
					"%s decompressed header block exceeds %d bytes", inf.dir, maxSize)
			}
		}
		if err == io.EOF || err == nil && n == 0 {
			break
		}
		if err != nil {
			inf.poisoned = true
			return nil, newDecodeError(KindInflateFailed, "%s inflate failed: %v", inf.dir, err)
		}
		if n < len(out) {
			// 本轮 sync-flush 边界内的数据已读完
			break
		}
		// 输出缓冲区被写满 说明这次 flush 产出的数据比一次 Read 还多 按几何增长扩容继续读取
		out = make([]byte, len(out)*2)
	}

	result := make([]byte, acc.Len())
	copy(result, acc.Bytes())
	return result, nil
}

// frameMemoKey 是 (streamID, frameType, frameIndex) 的复合键
//
// 用 xxhash 压成一个 uint64 避免 map 的 key 里嵌套字节切片或多字段结构体
// 仍然保证 spec §3 "per-frame memo" 所要求的粒度: 同一个被捕获的帧只解码一次
func frameMemoKey(frameIndex uint64, streamID uint32, frameType FrameType) uint64 {
	var b [8 + 4 + 2]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(frameIndex >> (56 - 8*i))
	}
	b[8] = byte(streamID >> 24)
	b[9] = byte(streamID >> 16)
	b[10] = byte(streamID >> 8)
	b[11] = byte(streamID)
	b[12] = byte(frameType >> 8)
	b[13] = byte(frameType)
	return xxhash.Sum64(b[:])
}
