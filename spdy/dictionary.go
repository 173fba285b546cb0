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
	"encoding/binary"
	"hash/adler32"
)

// presetDictionaryTokens 是 SPDY/3 zlib 预置字典中按顺序出现的 HTTP 词条
//
// 每个词条在字典里都以一个 4 字节大端长度前缀开头 spec §6.3 "length-prefixed
// HTTP tokens"。字典内容对双方的压缩/解压缩必须逐字节一致 这里不直接内嵌
// 一段不透明的字节数组 而是在包初始化时按文档化的词条列表拼装 —— 见 DESIGN.md
// 中关于为什么选择这种构造方式的说明
var presetDictionaryTokens = []string{
	"options", "get", "head", "post", "put", "delete", "trace",
	"accept", "accept-charset", "accept-encoding", "accept-language",
	"authorization", "expect", "from", "host",
	"if-modified-since", "if-match", "if-none-match", "if-range",
	"if-unmodified-since", "max-forwards", "proxy-authorization",
	"range", "referer", "te", "user-agent",
	"100", "101", "200", "201", "202", "203", "204", "205", "206",
	"300", "301", "302", "303", "304", "305", "306", "307",
	"400", "401", "402", "403", "404", "405", "406", "407", "408",
	"409", "410", "411", "412", "413", "414", "415", "416", "417",
	"500", "501", "502", "503", "504", "505",
	"accept-ranges", "age", "etag", "location", "proxy-authenticate",
	"public", "retry-after", "server", "set-cookie", "vary", "warning",
	"www-authenticate", "allow", "content-base", "content-encoding",
	"cache-control", "connection", "date", "trailer",
	"transfer-encoding", "upgrade", "via", "content-language",
	"content-length", "content-location", "content-md5",
	"content-range", "content-type", "expires", "last-modified",
	"method", "status", "url", "version",
	"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun",
	"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep",
	"Oct", "Nov", "Dec", "00:00:00", "GMT",
	"chunked", "text/html", "image/png", "image/jpeg", "image/gif",
	"application/xml", "application/xhtml+xml", "text/plain",
	"text/javascript", "application/javascript", "public",
	"max-age=", "gzip", "deflate", "identity", "charset=utf-8",
	"charset=iso-8859-1", ",enq=0.",
}

// buildPresetDictionary 按 spec §6.3 描述的格式 拼装出预置字典的字节序列
//
// 格式为一连串 {u32 big-endian length, token bytes} 对 最后以 ",enq=0." 收尾
func buildPresetDictionary() []byte {
	var buf bytes.Buffer
	lenPrefix := make([]byte, 4)
	for _, tok := range presetDictionaryTokens {
		binary.BigEndian.PutUint32(lenPrefix, uint32(len(tok)))
		buf.Write(lenPrefix)
		buf.WriteString(tok)
	}
	return buf.Bytes()
}

// presetDictionary 与 dictionaryAdler 在包初始化时构建一次 之后永不改变
//
// spec §5/§9: 字典是进程级的不可变表 其 Adler-32 只计算一次并复用
var (
	presetDictionary []byte
	dictionaryAdler  uint32
)

func init() {
	presetDictionary = buildPresetDictionary()
	dictionaryAdler = adler32.Checksum(presetDictionary)
}

// PresetDictionary 返回 header 压缩使用的预置字典 调用方不得修改返回的切片
//
// 字典由上面的词条列表拼装 其字节与标准 SPDY/3 字典不同 用标准字典压缩的
// header 流会因字典 Adler-32 不符而得到 KindDictionaryMismatch
func PresetDictionary() []byte {
	return presetDictionary
}

// DictionaryAdler32 返回预置字典的 Adler-32 校验和
func DictionaryAdler32() uint32 {
	return dictionaryAdler
}
