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
	"fmt"

	"github.com/pkg/errors"
)

func newError(format string, args ...any) error {
	format = "spdy/decoder: " + format
	return errors.Errorf(format, args...)
}

// Kind 标识一个解码诊断的类型 参见 spec §7
type Kind uint8

const (
	// KindTruncated 字段要求的字节数大于剩余可读字节数
	KindTruncated Kind = iota
	// KindMalformedType 控制帧类型超出了已知枚举范围
	KindMalformedType
	// KindUnsupportedVersion 控制帧版本号小于 3
	KindUnsupportedVersion
	// KindMalformedSettings SETTINGS 帧长度与声明的条目数不匹配
	KindMalformedSettings
	// KindMalformedHeaderBlock name/value 列表声明的条目数超过剩余字节
	KindMalformedHeaderBlock
	// KindMalformedRstStream RST_STREAM 帧长度不足 8 字节
	KindMalformedRstStream
	// KindInflateFailed header 解压缩失败 该方向的 inflater 状态视为中毒
	KindInflateFailed
	// KindDictionaryMismatch 对端请求的字典 Adler-32 与内置字典不一致
	KindDictionaryMismatch
	// KindBodyInflateFailed 实体正文解压缩失败 原始压缩字节被保留
	KindBodyInflateFailed
	// KindOversizedHeaderBlock 解压缩后的 header block 超过了配置的上限
	KindOversizedHeaderBlock
)

func (k Kind) String() string {
	switch k {
	case KindTruncated:
		return "Truncated"
	case KindMalformedType:
		return "MalformedType"
	case KindUnsupportedVersion:
		return "UnsupportedVersion"
	case KindMalformedSettings:
		return "MalformedSettings"
	case KindMalformedHeaderBlock:
		return "MalformedHeaderBlock"
	case KindMalformedRstStream:
		return "MalformedRstStream"
	case KindInflateFailed:
		return "InflateFailed"
	case KindDictionaryMismatch:
		return "DictionaryMismatch"
	case KindBodyInflateFailed:
		return "BodyInflateFailed"
	case KindOversizedHeaderBlock:
		return "OversizedHeaderBlock"
	default:
		return "Unknown"
	}
}

// DecodeError 附着在某一帧解码记录上的诊断错误
//
// 结构化错误类型 而非裸字符串 便于调用方 errors.As 判断具体 Kind
type DecodeError struct {
	Kind    Kind
	Message string
}

func newDecodeError(kind Kind, format string, args ...any) *DecodeError {
	return &DecodeError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Diagnostic 是附着在一个 Record 上的只读诊断条目
//
// spec §7 要求 "no silent discard" 即每一帧都要产生恰好一条记录 错误以
// 注解的形式挂在该记录上 而不是另开一条带外信令
type Diagnostic struct {
	Kind    Kind
	Message string
}

func diagnosticFromError(err error) Diagnostic {
	var de *DecodeError
	if errors.As(err, &de) {
		return Diagnostic{Kind: de.Kind, Message: de.Message}
	}
	return Diagnostic{Kind: KindTruncated, Message: err.Error()}
}
