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
	"time"

	"github.com/spdywire/spdydecode/internal/zerocopy"
	"github.com/spdywire/spdydecode/logger"
)

// readBlockSize 是每次从 zerocopy.Reader 取数据的窗口大小 对应 teacher 里
// common.ReadWriteBlockSize 的角色 这里直接固定一个合理值 因为本模块不依赖
// 抓包框架提供的全局常量
const readBlockSize = 64 * 1024

var errNotSPDY = newError("first byte does not look like a SPDY frame")

// Decoder 是 C8 描述的流式驱动器: 在一个方向的字节流上反复调用 Decode
// 逐帧切分、解析并把结果投递给 Sink spec §6 / §4.7
//
// 一个 Decoder 绑定一个 Conversation 对应一条传输连接 跨越多次 Decode 调用
// 维护未消费完的尾部字节 —— 这个累加模式直接照搬 protocol/phttp2/decoder.go
// 里 d.tail / d.partial 的结构 只是 SPDY 公共帧头是定长的 8 字节 不需要再
// 区分"帧头不足"和"payload 不足"两种状态机分支。
type Decoder struct {
	conv *Conversation
	sink Sink

	// tail 保存上一次 Decode 调用中未能构成完整帧的尾部字节
	tail []byte

	// detected 标记启发式嗅探是否已经通过一次 之后的调用不再重复嗅探
	// spec §4.7 "the heuristic only gates the first attempt"
	detected bool
}

// NewDecoder 创建一个绑定到给定 Conversation 与 Sink 的 Decoder
//
// sink 可以为 nil —— 这种情况下调用方只通过 Decode 的返回值消费记录 不经过
// 推送式接口
func NewDecoder(conv *Conversation, sink Sink) *Decoder {
	return &Decoder{conv: conv, sink: sink}
}

// looksLikeSPDY 实现 spec §4.7 的首字节启发式判定
//
// 第一个字节要么是 0x80（control 位置位 version 高 7 位为 0 这是 SPDY/3 实际
// 观察到的取值）要么是 0x00（DATA 帧 stream-id 最高字节通常为 0 因为活跃
// 连接数远小于 2^24）除此之外的取值被认为不是一段 SPDY 字节流的起点
func looksLikeSPDY(first byte) bool {
	return first == 0x00 || first == 0x80
}

// Decode 从 r 中取出下一块字节 切分出尽可能多的完整帧并逐一解码 spec §4.7
//
// 返回值中的记录顺序与输入字节流中帧出现的顺序一致 一次 Decode 调用可能产出
// 零个、一个或多个 Record；不足以构成下一帧的尾部字节被保留到下一次调用。
//
// 启发式检测失败时返回 errNotSPDY 且不修改任何内部状态 —— 调用方据此可以
// 把这段数据交给另一个协议的解码器去尝试 不留下任何副作用。
func (d *Decoder) Decode(r zerocopy.Reader, t time.Time) ([]*Record, error) {
	return d.decode(r, t, nil)
}

// DecodeVisited 是 Decode 的 is_visited=true 变体 spec §6.4
//
// 调用方在重新喂入一段"已经被捕获过"的字节流时（例如一次展示刷新重新触发了
// 解码）必须把该流中第一帧原先分配到的 frameIndex 传回来 —— 这样 C3 memo
// 才能命中 整段重放对外观察不到任何解压缩或状态机副作用 spec §3 "idempotence
// for replay"。流中后续帧仍按 Conversation 的单调计数器正常分配序号。
func (d *Decoder) DecodeVisited(r zerocopy.Reader, t time.Time, frameIndex uint64) ([]*Record, error) {
	return d.decode(r, t, &frameIndex)
}

// decode 是 Decode / DecodeVisited 共用的实现 firstFrameIndex 非 nil 时
// 该次调用解出的第一帧复用给定序号 而不是从 Conversation 计数器分配新序号
func (d *Decoder) decode(r zerocopy.Reader, t time.Time, firstFrameIndex *uint64) ([]*Record, error) {
	b, err := r.Read(readBlockSize)
	if err != nil {
		return nil, nil
	}
	if len(b) == 0 {
		return nil, nil
	}

	buf := b
	if len(d.tail) > 0 {
		combined := make([]byte, 0, len(d.tail)+len(b))
		combined = append(combined, d.tail...)
		combined = append(combined, b...)
		buf = combined
	}

	if !d.detected {
		if !looksLikeSPDY(buf[0]) {
			if d.conv.opts.DebugTrace {
				logger.Debugf("spdy decoder: first byte 0x%02x does not look like SPDY, rejecting block of %d bytes", buf[0], len(buf))
			}
			return nil, errNotSPDY
		}
	}

	if d.conv.opts.DebugTrace {
		logger.Debugf("spdy decoder: desegmenting block of %d bytes (%d carried over from previous call)", len(buf), len(d.tail))
	}

	var records []*Record
	off := 0
	for {
		remaining := buf[off:]
		if len(remaining) < frameHeaderLength {
			d.tail = cloneBytes(remaining)
			if d.conv.opts.DebugTrace {
				logger.Debugf("spdy decoder: %d trailing bytes short of a full frame header, carrying over", len(remaining))
			}
			break
		}

		hdr, payload, ferr := decodeFrameHeader(remaining)
		if ferr != nil {
			// payload 还没完全到达 整段留给下一次调用
			d.tail = cloneBytes(remaining)
			if d.conv.opts.DebugTrace {
				logger.Debugf("spdy decoder: payload not fully arrived (%v), carrying over %d bytes", ferr, len(remaining))
			}
			break
		}

		d.detected = true
		var frameIdx uint64
		if firstFrameIndex != nil {
			frameIdx = d.conv.reuseFrameIndex(*firstFrameIndex)
			firstFrameIndex = nil
		} else {
			frameIdx = d.conv.allocFrameIndex()
		}

		if d.conv.opts.DebugTrace {
			logger.Debugf("spdy decoder: decoding frame index=%d control=%v type=%d stream=%d length=%d", frameIdx, hdr.Control, hdr.Type, hdr.StreamID, hdr.Length)
		}

		rec := d.decodeOneFrame(hdr, payload, frameIdx)
		rec.CapturedAt = t
		records = append(records, rec)
		if d.sink != nil {
			d.sink.Emit(rec)
		}

		off += frameTotalSize(hdr.Length)
	}

	return records, nil
}

// decodeOneFrame 按帧类型分派 spec §4.2/§4.5/§4.6
func (d *Decoder) decodeOneFrame(hdr FrameHeader, payload []byte, frameIndex uint64) *Record {
	rec := &Record{Frame: hdr, FrameIndex: frameIndex}

	if !hdr.Control {
		dp, diag := d.conv.decodeDataFrame(hdr.StreamID, hdr.Flags, payload, frameIndex)
		rec.Payload = dp
		rec.addDiagnostic(diag)
		return rec
	}

	if hdr.Version < MinVersion {
		d := Diagnostic{Kind: KindUnsupportedVersion, Message: "control frame version below minimum supported version"}
		rec.addDiagnostic(&d)
		return rec
	}

	if !knownFrameTypes(hdr.Type) {
		d := Diagnostic{Kind: KindMalformedType, Message: "control frame type outside known range"}
		rec.addDiagnostic(&d)
		return rec
	}

	switch hdr.Type {
	case FrameSynStream:
		cur := newCursor(payload)
		streamID, err := cur.u32be()
		if err != nil {
			rec.addDiagnostic(diagPtr(diagnosticFromError(err)))
			return rec
		}
		streamID &= streamIDMask
		rest, _ := cur.bytes(cur.remaining())
		payload, diag := d.conv.decodeSynStream(streamID, hdr.Flags, rest, frameIndex)
		rec.Payload = payload
		rec.addDiagnostic(diag)

	case FrameSynReply:
		cur := newCursor(payload)
		streamID, err := cur.u32be()
		if err != nil {
			rec.addDiagnostic(diagPtr(diagnosticFromError(err)))
			return rec
		}
		streamID &= streamIDMask
		rest, _ := cur.bytes(cur.remaining())
		out, diag := d.conv.decodeSynReply(streamID, hdr.Flags, rest, frameIndex)
		rec.Payload = out
		rec.addDiagnostic(diag)

	case FrameHeaders:
		cur := newCursor(payload)
		streamID, err := cur.u32be()
		if err != nil {
			rec.addDiagnostic(diagPtr(diagnosticFromError(err)))
			return rec
		}
		streamID &= streamIDMask
		rest, _ := cur.bytes(cur.remaining())
		out, diag := d.conv.decodeHeaders(streamID, hdr.Flags, rest, frameIndex)
		rec.Payload = out
		rec.addDiagnostic(diag)

	case FrameRstStream:
		cur := newCursor(payload)
		streamID, err := cur.u32be()
		if err != nil {
			rec.addDiagnostic(&Diagnostic{Kind: KindMalformedRstStream, Message: "RST_STREAM payload shorter than 8 bytes"})
			return rec
		}
		streamID &= streamIDMask
		rest, _ := cur.bytes(cur.remaining())
		out, diag := decodeRstStream(streamID, rest)
		rec.Payload = out
		rec.addDiagnostic(diag)

	case FrameSettings:
		out, diag := decodeSettings(hdr.Flags, payload)
		rec.Payload = out
		rec.addDiagnostic(diag)

	case FrameNoop:
		rec.Payload = &NoopPayload{}

	case FramePing:
		out, diag := decodePing(payload)
		rec.Payload = out
		rec.addDiagnostic(diag)

	case FrameGoAway:
		out, diag := decodeGoAway(payload)
		rec.Payload = out
		rec.addDiagnostic(diag)

	case FrameWindowUpdate:
		cur := newCursor(payload)
		streamID, err := cur.u32be()
		if err != nil {
			rec.addDiagnostic(diagPtr(diagnosticFromError(err)))
			return rec
		}
		streamID &= streamIDMask
		rest, _ := cur.bytes(cur.remaining())
		out, diag := decodeWindowUpdate(streamID, rest)
		rec.Payload = out
		rec.addDiagnostic(diag)

	case FrameCredential:
		out, diag := decodeCredential(payload)
		rec.Payload = out
		rec.addDiagnostic(diag)
	}

	return rec
}

func cloneBytes(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
