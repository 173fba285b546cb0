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

import "github.com/spdywire/spdydecode/common"

// HeadersDirection 决定 HEADERS 帧按哪个方向的 inflater 解码
//
// spec §9 把这个默认行为标记为"可观察到的怪癖 而非规范要求"建议做成可配置项
type HeadersDirection uint8

const (
	// HeadersDirectionReply 匹配源实现观察到的行为: 假设客户端不发送 HEADERS
	HeadersDirectionReply HeadersDirection = iota
	HeadersDirectionRequest
)

// Options 是 spec §6.5 列出的可识别配置项
//
// 与 common.Options（teacher 的 map[string]any + cast）同源 这里给出一个
// 带默认值构造函数的强类型版本 供库的直接调用方使用；cmd/spdydump 则通过
// config 标签把 confengine 解析出的配置直接解包到这个结构体；FromMap 负责从
// map[string]any 转换。
type Options struct {
	// AssembleEntityBodies 打开 C6 的分片累积 默认 true
	AssembleEntityBodies bool `config:"assemble_entity_bodies"`
	// DecompressHeaders 打开 C3 spec §6.5 默认在 zlib 可用时为 true（标准库始终可用）
	DecompressHeaders bool `config:"decompress_headers"`
	// DecompressBody 打开 C6 中的 gzip/deflate 解压缩 默认 true
	DecompressBody bool `config:"decompress_body"`
	// DebugTrace 打开逐步进度日志 默认 false
	DebugTrace bool `config:"debug_trace"`
	// MaxHeaderBlockSize 是解压缩后单个 header block 允许的最大字节数
	// 0 表示使用 defaultMaxHeaderBlockSize spec §5/§9
	MaxHeaderBlockSize int `config:"max_header_block_size"`
	// HeadersDirection 控制 HEADERS 帧的方向选择策略 spec §9 open question
	HeadersDirection HeadersDirection `config:"headers_direction"`
}

// DefaultOptions 返回 spec §6.5 规定的默认配置
func DefaultOptions() Options {
	return Options{
		AssembleEntityBodies: true,
		DecompressHeaders:    true,
		DecompressBody:       true,
		DebugTrace:           false,
		MaxHeaderBlockSize:   defaultMaxHeaderBlockSize,
		HeadersDirection:     HeadersDirectionReply,
	}
}

// FromMap 在 DefaultOptions 基础上应用一份 map[string]any 里出现的键
//
// 直接复用 common.Options 的 cast 取值语义 未出现的键保留默认值 不认识
// 的键或转换失败的值被忽略
func FromMap(m map[string]any) Options {
	opt := DefaultOptions()
	o := common.Options(m)

	if _, ok := m["assemble_entity_bodies"]; ok {
		if b, err := o.GetBool("assemble_entity_bodies"); err == nil {
			opt.AssembleEntityBodies = b
		}
	}
	if _, ok := m["decompress_headers"]; ok {
		if b, err := o.GetBool("decompress_headers"); err == nil {
			opt.DecompressHeaders = b
		}
	}
	if _, ok := m["decompress_body"]; ok {
		if b, err := o.GetBool("decompress_body"); err == nil {
			opt.DecompressBody = b
		}
	}
	if _, ok := m["debug_trace"]; ok {
		if b, err := o.GetBool("debug_trace"); err == nil {
			opt.DebugTrace = b
		}
	}
	if _, ok := m["max_header_block_size"]; ok {
		if n, err := o.GetInt("max_header_block_size"); err == nil && n > 0 {
			opt.MaxHeaderBlockSize = n
		}
	}
	return opt
}
