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
	"io"
	"strings"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
)

// DataPayload 是一个 DATA 帧解析后的结果 spec §4.6 / §6.1
type DataPayload struct {
	StreamID uint32
	Fin      bool

	// Delivered 在 Fin 为真时置位 stream 已知时 Body 是重组后的 body
	// (可能经过 gzip/deflate 解压) stream 未知时 Body 只是这一帧的原始负载
	Delivered         bool
	ContentType       string
	ContentTypeParams string
	Body              []byte
}

// decodeDataFrame 解析一个 DATA 帧的 payload spec §4.6
//
// frameIndex 标识当前抓取帧在会话中的序号 用于片段溯源 §3 "source_frame_index"
func (conv *Conversation) decodeDataFrame(streamID uint32, flags uint8, payload []byte, frameIndex uint64) (*DataPayload, *Diagnostic) {
	fin := flags&FlagFin != 0
	out := &DataPayload{StreamID: streamID, Fin: fin}

	si := conv.streams.get(streamID)
	if si == nil {
		// spec §4.6 "Policy corners": 未知 stream 的 DATA 帧被当作原始字节处理
		// 不创建 stream 记录
		if fin {
			out.Delivered = true
			out.Body = payload
		}
		return out, nil
	}

	if !fin {
		if conv.opts.AssembleEntityBodies {
			si.appendChunk(payload, frameIndex)
		} else {
			si.DataFrameCount++
		}
		return out, nil
	}

	si.DataFrameCount++
	var body []byte
	if conv.opts.AssembleEntityBodies {
		body = si.concatChunks(payload)
	} else {
		body = payload
	}

	var diag *Diagnostic
	if conv.opts.DecompressBody {
		decoded, derr := decompressBody(si.ContentEncoding, body)
		if derr != nil {
			d := diagnosticFromError(derr)
			diag = &d
			// spec §4.6 step 3: 解压失败时保留压缩字节 而不是丢弃
		} else {
			body = decoded
		}
	}

	si.Assembled = body
	out.Delivered = true
	out.ContentType = si.ContentType
	out.ContentTypeParams = si.ContentTypeParams
	out.Body = body

	// spec §4.6 step 3 / §6.4: 把重组后的 body 连同 content-type 一起投递给
	// 外部 body-subdissector 协作者 未注册任何协作者时是 no-op
	if conv.bodySubdissectors != nil {
		conv.bodySubdissectors.Dispatch(si.ContentType, si.ContentTypeParams, body)
	}

	return out, diag
}

// decompressBody 按 spec §4.6 step 3 对 content-encoding 做解压缩
//
// gzip/deflate (大小写不敏感) 才会被处理 identity 直接放行 其余编码原样透传
// 并不视为错误 —— 它们属于 §1 "entity body 的实际媒体解析被委托" 的范畴
func decompressBody(contentEncoding string, body []byte) ([]byte, error) {
	switch strings.ToLower(strings.TrimSpace(contentEncoding)) {
	case "gzip":
		r, err := gzip.NewReader(bytes.NewReader(body))
		if err != nil {
			return nil, newDecodeError(KindBodyInflateFailed, "gzip: %v", err)
		}
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, newDecodeError(KindBodyInflateFailed, "gzip: %v", err)
		}
		return out, nil
	case "deflate":
		r := flate.NewReader(bytes.NewReader(body))
		defer r.Close()
		out, err := io.ReadAll(r)
		if err != nil {
			return nil, newDecodeError(KindBodyInflateFailed, "deflate: %v", err)
		}
		return out, nil
	case "identity", "":
		return body, nil
	default:
		// 未知编码: 原样透传 不附带任何诊断
		return body, nil
	}
}
