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

// Package bufpool 提供 *bytes.Buffer 的复用池
//
// protocol/phttp2 一类的解码器大量申请/释放临时缓冲区用于拼接跨帧数据
// 直接复用 github.com/valyala/bytebufferpool 的底层分配策略 避免每次
// 解码都触发一次堆分配
package bufpool

import (
	"bytes"

	"github.com/valyala/bytebufferpool"
)

var pool bytebufferpool.Pool

// Acquire 从池中取出一个已重置的 *bytes.Buffer
func Acquire() *bytes.Buffer {
	bb := pool.Get()
	return bytes.NewBuffer(bb.B[:0])
}

// Release 归还一个不再使用的 *bytes.Buffer
//
// 调用方归还之后不得再访问该 buffer
func Release(buf *bytes.Buffer) {
	if buf == nil {
		return
	}
	bb := &bytebufferpool.ByteBuffer{B: buf.Bytes()[:0]}
	pool.Put(bb)
}
