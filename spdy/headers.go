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

import "strings"

// NameValue 是解压缩后 name/value 头部列表中的一对 顺序与对端插入顺序一致
//
// spec §4.4: 允许重复 顺序必须对下游展示保留 因此不能去重到 map 里
type NameValue struct {
	Name  string
	Value string
}

// specialHeaders 记录了需要被单独提取的 header 名 统一小写比较 spec §4.4
const (
	headerMethod          = "method"
	headerStatus          = "status"
	headerURL             = "url"
	headerVersion         = "version"
	headerContentType     = "content-type"
	headerContentEncoding = "content-encoding"
)

// HeaderFields 是 name/value 列表解析的结果 既保留原始顺序又暴露特殊字段
type HeaderFields struct {
	Pairs []NameValue

	Method            string
	Status            string
	URL               string
	Version           string
	ContentType       string // 小写 已去除 `;` 之后的参数部分
	ContentTypeParams string
	ContentEncoding   string
}

// decodeNameValueList 解析已解压缩的 header block spec §4.4
//
// 布局: u32 count, 而后 count 个 {u32 nameLen, name, u32 valueLen, value}
// 若 count 超过剩余字节数 整个块被判为畸形且不产出任何 pair
// 若列表中途发生短读 则返回已成功解析的前缀与一个 Truncated 错误
func decodeNameValueList(b []byte) (*HeaderFields, error) {
	c := newCursor(b)
	count, err := c.u32be()
	if err != nil {
		return nil, newDecodeError(KindMalformedHeaderBlock, "missing name/value count")
	}

	// 上界校验: 声明的条目数超过剩余字节数时整个块视为畸形
	if count > uint32(c.remaining()) {
		return nil, newDecodeError(KindMalformedHeaderBlock, "declared pair count %d exceeds remaining bytes", count)
	}

	hf := &HeaderFields{}
	for i := uint32(0); i < count; i++ {
		nameLen, err := c.u32be()
		if err != nil {
			return hf, errTruncated
		}
		nameBytes, err := c.bytes(int(nameLen))
		if err != nil {
			return hf, errTruncated
		}
		valueLen, err := c.u32be()
		if err != nil {
			return hf, errTruncated
		}
		valueBytes, err := c.bytes(int(valueLen))
		if err != nil {
			return hf, errTruncated
		}

		name := string(nameBytes)
		value := string(valueBytes)
		hf.Pairs = append(hf.Pairs, NameValue{Name: name, Value: value})
		hf.applySpecial(name, value)
	}
	return hf, nil
}

// applySpecial 识别 spec §4.4 列出的特殊 header 名 大小写不敏感
func (hf *HeaderFields) applySpecial(name, value string) {
	switch strings.ToLower(name) {
	case headerMethod:
		hf.Method = value
	case headerStatus:
		hf.Status = value
	case headerURL:
		hf.URL = value
	case headerVersion:
		hf.Version = value
	case headerContentType:
		ct, params, _ := strings.Cut(value, ";")
		hf.ContentType = strings.ToLower(strings.TrimSpace(ct))
		hf.ContentTypeParams = strings.TrimSpace(params)
	case headerContentEncoding:
		hf.ContentEncoding = strings.ToLower(strings.TrimSpace(value))
	}
}

// SynStreamInfo 返回 spec §4.4 中为 SYN_STREAM 定义的人类可读 info 字段
func (hf *HeaderFields) SynStreamInfo() string {
	return strings.TrimSpace(hf.Method + " " + hf.URL + " " + hf.Version)
}

// SynReplyInfo 返回 spec §4.4 中为 SYN_REPLY 定义的人类可读 info 字段
func (hf *HeaderFields) SynReplyInfo() string {
	return strings.TrimSpace(hf.Status + " " + hf.Version)
}
