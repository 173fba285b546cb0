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
	"sync"
	"time"
)

// Record 是单个帧解码后的结构化结果 spec §1 "structured decode record" / §6.4
//
// Payload 按帧类型持有其中一个 *SynStreamPayload / *SynReplyPayload / ...
// 具体类型 调用方用类型断言或 switch 区分 —— "Sum types over tag+union"
// 设计笔记 spec §9
type Record struct {
	Frame       FrameHeader
	FrameIndex  uint64
	Payload     any
	Diagnostics []Diagnostic

	// CapturedAt 是调用方在对应的 Decode 调用里传入的时间戳 对应 teacher
	// 里 phttp2 decoder 用同一个 t 给一次 Decode 调用产出的所有对象打点的做法
	CapturedAt time.Time
}

// addDiagnostic 把一条诊断挂到记录上 spec §7 "errors become annotations"
func (r *Record) addDiagnostic(d *Diagnostic) {
	if d == nil {
		return
	}
	r.Diagnostics = append(r.Diagnostics, *d)
}

// Sink 是 spec §6.4 "Output sink" 协作者接口: 接收一串解码记录
type Sink interface {
	Emit(r *Record)
}

// SinkFunc 允许普通函数满足 Sink 接口
type SinkFunc func(r *Record)

func (f SinkFunc) Emit(r *Record) { f(r) }

// BodySubdissector 在一段重组后的 entity body 上做媒体类型相关的解析
//
// spec §1/§6.4 把这部分工作列为"delegated"的外部协作者 这里只提供一个注册表
// 调用方可以按 content-type 注册自己的解析函数
type BodySubdissector func(body []byte, contentTypeParams string)

// BodySubdissectorRegistry 是 content-type -> BodySubdissector 的注册表
//
// 形态上对应 protocol/pool.go 里 protocol.Register / protocol.Get 的注册模式
type BodySubdissectorRegistry struct {
	mu    sync.RWMutex
	funcs map[string]BodySubdissector
}

// NewBodySubdissectorRegistry 创建一个空的注册表
func NewBodySubdissectorRegistry() *BodySubdissectorRegistry {
	return &BodySubdissectorRegistry{funcs: make(map[string]BodySubdissector)}
}

// Register 为给定 content-type（已小写）注册一个 BodySubdissector
func (reg *BodySubdissectorRegistry) Register(contentType string, f BodySubdissector) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	reg.funcs[contentType] = f
}

// Dispatch 按 content-type 查找并调用对应的 BodySubdissector 找不到则什么都不做
func (reg *BodySubdissectorRegistry) Dispatch(contentType, contentTypeParams string, body []byte) {
	reg.mu.RLock()
	f, ok := reg.funcs[contentType]
	reg.mu.RUnlock()
	if !ok {
		return
	}
	f(body, contentTypeParams)
}
