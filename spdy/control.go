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

import "fmt"

// RstStatus 是 RST_STREAM 帧携带的状态码 spec §4.5 "RST_STREAM"
type RstStatus uint32

const (
	RstProtocolError RstStatus = iota + 1
	RstInvalidStream
	RstRefusedStream
	RstUnsupportedVersion
	RstCancel
	RstInternalError
	RstFlowControlError
	RstStreamInUse
	RstStreamAlreadyClosed
	RstInvalidCredentials
	RstFrameTooLarge
)

func (s RstStatus) String() string {
	switch s {
	case RstProtocolError:
		return "PROTOCOL_ERROR"
	case RstInvalidStream:
		return "INVALID_STREAM"
	case RstRefusedStream:
		return "REFUSED_STREAM"
	case RstUnsupportedVersion:
		return "UNSUPPORTED_VERSION"
	case RstCancel:
		return "CANCEL"
	case RstInternalError:
		return "INTERNAL_ERROR"
	case RstFlowControlError:
		return "FLOW_CONTROL_ERROR"
	case RstStreamInUse:
		return "STREAM_IN_USE"
	case RstStreamAlreadyClosed:
		return "STREAM_ALREADY_CLOSED"
	case RstInvalidCredentials:
		return "INVALID_CREDENTIALS"
	case RstFrameTooLarge:
		return "FRAME_TOO_LARGE"
	default:
		return fmt.Sprintf("RST_STATUS(%d)", uint32(s))
	}
}

// GoAwayStatus 是 GOAWAY 帧携带的状态码 spec §4.5 "GOAWAY"
type GoAwayStatus uint32

const (
	GoAwayOK GoAwayStatus = iota
	GoAwayProtocolError
	GoAwayInternalError
)

func (s GoAwayStatus) String() string {
	switch s {
	case GoAwayOK:
		return "OK"
	case GoAwayProtocolError:
		return "PROTOCOL_ERROR"
	case GoAwayInternalError:
		return "INTERNAL_ERROR"
	default:
		return fmt.Sprintf("GOAWAY_STATUS(%d)", uint32(s))
	}
}

// SettingID 标识 SETTINGS 帧中单个 entry 的配置项 spec §4.5 "SETTINGS"
type SettingID uint32

const (
	SettingUploadBandwidth SettingID = iota + 1
	SettingDownloadBandwidth
	SettingRoundTripTime
	SettingMaxConcurrentStreams
	SettingCurrentCwnd
	SettingDownloadRetransRate
	SettingInitialWindowSize
)

func (id SettingID) String() string {
	switch id {
	case SettingUploadBandwidth:
		return "UPLOAD_BANDWIDTH"
	case SettingDownloadBandwidth:
		return "DOWNLOAD_BANDWIDTH"
	case SettingRoundTripTime:
		return "ROUND_TRIP_TIME"
	case SettingMaxConcurrentStreams:
		return "MAX_CONCURRENT_STREAMS"
	case SettingCurrentCwnd:
		return "CURRENT_CWND"
	case SettingDownloadRetransRate:
		return "DOWNLOAD_RETRANS_RATE"
	case SettingInitialWindowSize:
		return "INITIAL_WINDOW_SIZE"
	default:
		return fmt.Sprintf("SETTING_ID(%d)", uint32(id))
	}
}

const (
	// settingFlagPersistValue 标记发送端希望对端持久化这条设置 spec §4.5
	settingFlagPersistValue uint8 = 0x01
	// settingFlagPersisted 标记这条设置来自之前被持久化的值
	settingFlagPersisted uint8 = 0x02
)

// SettingEntry 是 SETTINGS 帧里的单条 {id, value} spec §4.5
type SettingEntry struct {
	ID    SettingID
	Flags uint8
	Value uint32
}

// Persisted 报告这条 entry 是否带有 PERSIST_VALUE 标志
func (e SettingEntry) Persisted() bool { return e.Flags&settingFlagPersistValue != 0 }

// FromPersistedStore 报告这条 entry 是否带有 PERSISTED 标志
func (e SettingEntry) FromPersistedStore() bool { return e.Flags&settingFlagPersisted != 0 }

// SynStreamPayload 是 SYN_STREAM 帧解码后的结果 spec §4.5 "SYN_STREAM" / §6.1
type SynStreamPayload struct {
	StreamID       uint32
	AssocStreamID  uint32
	Priority       uint8
	Slot           uint8
	Unidirectional bool
	Fin            bool
	Headers        *HeaderFields
}

// SynReplyPayload 是 SYN_REPLY 帧解码后的结果 spec §4.5 "SYN_REPLY"
type SynReplyPayload struct {
	StreamID uint32
	Fin      bool
	Headers  *HeaderFields
}

// HeadersPayload 是 HEADERS 帧解码后的结果 spec §4.5 "HEADERS"
type HeadersPayload struct {
	StreamID uint32
	Fin      bool
	Headers  *HeaderFields
}

// RstStreamPayload 是 RST_STREAM 帧解码后的结果
type RstStreamPayload struct {
	StreamID uint32
	Status   RstStatus
}

// SettingsPayload 是 SETTINGS 帧解码后的结果
type SettingsPayload struct {
	ClearPersisted bool
	Entries        []SettingEntry
}

// PingPayload 是 PING 帧解码后的结果
type PingPayload struct {
	ID uint32
}

// GoAwayPayload 是 GOAWAY 帧解码后的结果
type GoAwayPayload struct {
	LastGoodStreamID uint32
	Status           GoAwayStatus
}

// WindowUpdatePayload 是 WINDOW_UPDATE 帧解码后的结果
type WindowUpdatePayload struct {
	StreamID    uint32
	DeltaWindow uint32
}

// NoopPayload 标记一个被接受但无需解释的 NOOP 帧
type NoopPayload struct{}

// CredentialPayload 标记一个被接受但未做字段级解释的 CREDENTIAL 帧
//
// spec §4.5 把 CREDENTIAL 的载荷结构列为已知但非强制解析的扩展 这里只保留
// 原始 slot 之外的字节 供调用方自行进一步处理
type CredentialPayload struct {
	Slot uint16
	Raw  []byte
}

// decodeSynStream 实现 spec §4.5 "SYN_STREAM"
func (conv *Conversation) decodeSynStream(streamID uint32, flags uint8, payload []byte, frameIndex uint64) (*SynStreamPayload, *Diagnostic) {
	cur := newCursor(payload)
	assocStreamID, err := cur.u32be()
	if err != nil {
		return nil, diagPtr(diagnosticFromError(err))
	}
	assocStreamID &= streamIDMask

	priority, err := cur.u8()
	if err != nil {
		return nil, diagPtr(diagnosticFromError(err))
	}
	priority = (priority >> 5) & 0x07

	slot, err := cur.u8()
	if err != nil {
		return nil, diagPtr(diagnosticFromError(err))
	}

	out := &SynStreamPayload{
		StreamID:       streamID,
		AssocStreamID:  assocStreamID,
		Priority:       priority,
		Slot:           slot,
		Unidirectional: flags&FlagUnidirectional != 0,
		Fin:            flags&FlagFin != 0,
	}

	rest, _ := cur.bytes(cur.remaining())
	hf, diag := conv.decodeControlHeaders(FrameSynStream, streamID, frameIndex, rest)
	out.Headers = hf
	if hf != nil {
		si := conv.streams.getOrCreate(streamID)
		si.saveInfo(hf.ContentType, hf.ContentTypeParams, hf.ContentEncoding)
	}
	return out, diag
}

// decodeSynReply 实现 spec §4.5 "SYN_REPLY"
func (conv *Conversation) decodeSynReply(streamID uint32, flags uint8, payload []byte, frameIndex uint64) (*SynReplyPayload, *Diagnostic) {
	out := &SynReplyPayload{StreamID: streamID, Fin: flags&FlagFin != 0}
	hf, diag := conv.decodeControlHeaders(FrameSynReply, streamID, frameIndex, payload)
	out.Headers = hf
	if hf != nil {
		si := conv.streams.getOrCreate(streamID)
		si.saveInfo(hf.ContentType, hf.ContentTypeParams, hf.ContentEncoding)
	}
	return out, diag
}

// decodeHeaders 实现 spec §4.5 "HEADERS": update-without-replace 语义
//
// 解出的字段只在对应槽位为空时补写 已有的非空字段不会被覆盖
func (conv *Conversation) decodeHeaders(streamID uint32, flags uint8, payload []byte, frameIndex uint64) (*HeadersPayload, *Diagnostic) {
	out := &HeadersPayload{StreamID: streamID, Fin: flags&FlagFin != 0}
	hf, diag := conv.decodeControlHeaders(FrameHeaders, streamID, frameIndex, payload)
	out.Headers = hf
	if hf != nil {
		si := conv.streams.getOrCreate(streamID)
		if si.ContentType == "" {
			si.ContentType = hf.ContentType
			si.ContentTypeParams = hf.ContentTypeParams
		}
		if si.ContentEncoding == "" {
			si.ContentEncoding = hf.ContentEncoding
		}
		si.registered = true
	}
	return out, diag
}

// decodeControlHeaders 是 SYN_STREAM/SYN_REPLY/HEADERS 共用的 C3+C4 管道
func (conv *Conversation) decodeControlHeaders(frameType FrameType, streamID uint32, frameIndex uint64, compressed []byte) (*HeaderFields, *Diagnostic) {
	decoded, err := conv.inflateHeaderBlock(frameType, streamID, frameIndex, compressed)
	if err != nil {
		d := diagnosticFromError(err)
		return nil, &d
	}
	hf, err := decodeNameValueList(decoded)
	if err != nil && hf == nil {
		d := diagnosticFromError(err)
		return nil, &d
	}
	if err != nil {
		d := diagnosticFromError(err)
		return hf, &d
	}
	return hf, nil
}

// decodeRstStream 实现 spec §4.5 "RST_STREAM"
func decodeRstStream(streamID uint32, payload []byte) (*RstStreamPayload, *Diagnostic) {
	cur := newCursor(payload)
	status, err := cur.u32be()
	if err != nil {
		return nil, &Diagnostic{Kind: KindMalformedRstStream, Message: "RST_STREAM payload shorter than 8 bytes"}
	}
	return &RstStreamPayload{StreamID: streamID, Status: RstStatus(status)}, nil
}

// decodeSettings 实现 spec §4.5 "SETTINGS"
func decodeSettings(flags uint8, payload []byte) (*SettingsPayload, *Diagnostic) {
	cur := newCursor(payload)
	count, err := cur.u32be()
	if err != nil {
		return nil, diagPtr(diagnosticFromError(err))
	}

	// spec §4.5: 每个 entry 固定 8 字节 剩余字节数不足以容纳声明的 count 时
	// 视为畸形 (length < 4 + 8N)
	if uint64(cur.remaining()) < uint64(count)*8 {
		d := Diagnostic{Kind: KindMalformedSettings, Message: fmt.Sprintf(
			"settings count %d exceeds remaining payload length %d", count, cur.remaining())}
		return nil, &d
	}

	out := &SettingsPayload{ClearPersisted: flags&FlagClearSettings != 0}
	for i := uint32(0); i < count; i++ {
		idAndFlags, err := cur.u32be()
		if err != nil {
			return out, diagPtr(diagnosticFromError(err))
		}
		entryFlags := uint8(idAndFlags >> 24)
		id := idAndFlags & 0x00ffffff

		value, err := cur.u32be()
		if err != nil {
			return out, diagPtr(diagnosticFromError(err))
		}
		out.Entries = append(out.Entries, SettingEntry{ID: SettingID(id), Flags: entryFlags, Value: value})
	}
	return out, nil
}

// decodePing 实现 spec §4.5 "PING"
//
// id 的奇偶性区分发起方: 客户端发起的 ping 用奇数 id 服务端发起的用偶数 id
// 这里不强制校验 只解出原始值 供调用方判断来源
func decodePing(payload []byte) (*PingPayload, *Diagnostic) {
	cur := newCursor(payload)
	id, err := cur.u32be()
	if err != nil {
		return nil, diagPtr(diagnosticFromError(err))
	}
	return &PingPayload{ID: id}, nil
}

// decodeGoAway 实现 spec §4.5 "GOAWAY"
func decodeGoAway(payload []byte) (*GoAwayPayload, *Diagnostic) {
	cur := newCursor(payload)
	lastGoodStreamID, err := cur.u32be()
	if err != nil {
		return nil, diagPtr(diagnosticFromError(err))
	}
	lastGoodStreamID &= streamIDMask

	status, err := cur.u32be()
	if err != nil {
		// 旧版本可能不携带 status 字段 按 OK 处理
		return &GoAwayPayload{LastGoodStreamID: lastGoodStreamID, Status: GoAwayOK}, nil
	}
	return &GoAwayPayload{LastGoodStreamID: lastGoodStreamID, Status: GoAwayStatus(status)}, nil
}

// decodeWindowUpdate 实现 spec §4.5 "WINDOW_UPDATE"
func decodeWindowUpdate(streamID uint32, payload []byte) (*WindowUpdatePayload, *Diagnostic) {
	cur := newCursor(payload)
	delta, err := cur.u32be()
	if err != nil {
		return nil, diagPtr(diagnosticFromError(err))
	}
	return &WindowUpdatePayload{StreamID: streamID, DeltaWindow: delta & streamIDMask}, nil
}

// decodeCredential 接受但不做字段级解释 CREDENTIAL 帧的 payload spec §4.5
func decodeCredential(payload []byte) (*CredentialPayload, *Diagnostic) {
	cur := newCursor(payload)
	slot, err := cur.u16be()
	if err != nil {
		return nil, diagPtr(diagnosticFromError(err))
	}
	rest, _ := cur.bytes(cur.remaining())
	return &CredentialPayload{Slot: slot, Raw: rest}, nil
}

func diagPtr(d Diagnostic) *Diagnostic { return &d }
