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
	"github.com/google/uuid"
	multierror "github.com/hashicorp/go-multierror"

	"github.com/spdywire/spdydecode/logger"
)

// Conversation 是单条传输连接（按 5-tuple 归类的一对方向）的长期状态 spec §3
//
// Conversation 独占自己的两个 inflater、Stream 映射表与逐帧 memo 不与任何其它
// 会话共享可变状态 spec §5 "No shared mutation across conversations"
type Conversation struct {
	ID uuid.UUID

	requestInflater *inflater
	replyInflater   *inflater

	streams *registry
	memo    map[uint64][]byte

	opts Options

	// bodySubdissectors 是 spec §6.4 "external body-subdissector interface"
	// 的协作者 nil 表示调用方没有注册任何媒体类型解析器 这时 C6 的投递步骤
	// 是一个 no-op spec §4.6 step 3
	bodySubdissectors *BodySubdissectorRegistry

	// nextFrameIndex 是单调递增的帧序号 用于构造 per-frame memo key 以及
	// DATA chunk 的 source_frame_index spec §3
	nextFrameIndex uint64
}

// NewConversation 创建一个新的会话状态 两个方向的 inflater 均惰性初始化
// spec §3 "Initialised lazily the first time decompression is requested"
func NewConversation(opts Options) *Conversation {
	return &Conversation{
		ID:      uuid.New(),
		streams: newRegistry(),
		memo:    make(map[uint64][]byte),
		opts:    opts,
	}
}

// SetBodySubdissectors 注册 spec §6.4 的外部 body-subdissector 协作者
//
// reg 可以为 nil 以清除之前注册的协作者 —— 这种情况下 C6 的投递步骤回到
// no-op 状态
func (conv *Conversation) SetBodySubdissectors(reg *BodySubdissectorRegistry) {
	conv.bodySubdissectors = reg
}

// Free 释放会话持有的资源 聚合两个方向各自的释放错误 spec §5 ownership
func (conv *Conversation) Free() error {
	var merr *multierror.Error
	if conv.requestInflater != nil {
		if err := conv.requestInflater.Close(); err != nil {
			merr = multierror.Append(merr, err)
		}
		conv.requestInflater = nil
	}
	if conv.replyInflater != nil {
		if err := conv.replyInflater.Close(); err != nil {
			merr = multierror.Append(merr, err)
		}
		conv.replyInflater = nil
	}
	conv.streams = newRegistry()
	conv.memo = nil
	return merr.ErrorOrNil()
}

func (conv *Conversation) inflaterFor(dir direction) *inflater {
	switch dir {
	case dirRequest:
		if conv.requestInflater == nil {
			conv.requestInflater = newInflater(dirRequest)
		}
		return conv.requestInflater
	default:
		if conv.replyInflater == nil {
			conv.replyInflater = newInflater(dirReply)
		}
		return conv.replyInflater
	}
}

// directionFor 实现 spec §3 invariants 中的方向选择规则:
//
//   - SYN_STREAM 使用 request 方向的 inflater
//   - SYN_REPLY / HEADERS 使用 reply 方向的 inflater
//   - 其余组合（理论上不会发生）默认走 reply 方向 以兼容已观察到的对端行为
//
// HEADERS 帧统一走 reply 方向是一个可观察到的怪癖而非协议要求 —— 源实现假设
// 客户端不会发送 HEADERS spec §9 open question。调用方可以通过
// Options.HeadersDirection 覆盖这个默认策略。
func (conv *Conversation) directionFor(frameType FrameType) direction {
	switch frameType {
	case FrameSynStream:
		return dirRequest
	case FrameSynReply:
		return dirReply
	case FrameHeaders:
		if conv.opts.HeadersDirection == HeadersDirectionRequest {
			return dirRequest
		}
		return dirReply
	default:
		return dirReply
	}
}

// maxHeaderBlockSize 返回本会话对解压缩后 header block 施加的上限
func (conv *Conversation) maxHeaderBlockSize() int {
	if conv.opts.MaxHeaderBlockSize > 0 {
		return conv.opts.MaxHeaderBlockSize
	}
	return defaultMaxHeaderBlockSize
}

// inflateHeaderBlock 是 C3 的对外契约 spec §4.3
//
// 先查 memo 命中则直接返回且绝不触碰 inflater；未命中才真正推进该方向的
// zlib 流，并把结果写回 memo —— 这是保证"同一个被捕获的帧只解码一次"的唯一
// 位置，idempotent-redecode 的正确性完全依赖这里。
func (conv *Conversation) inflateHeaderBlock(frameType FrameType, streamID uint32, frameIndex uint64, compressed []byte) ([]byte, error) {
	if !conv.opts.DecompressHeaders {
		return nil, newDecodeError(KindInflateFailed, "header decompression disabled by configuration")
	}

	key := frameMemoKey(frameIndex, streamID, frameType)
	if cached, ok := conv.memo[key]; ok {
		if conv.opts.DebugTrace {
			logger.Debugf("spdy decompressor: memo hit for stream=%d frameIndex=%d, skipping inflate", streamID, frameIndex)
		}
		return cached, nil
	}

	dir := conv.directionFor(frameType)
	inf := conv.inflaterFor(dir)
	if conv.opts.DebugTrace {
		logger.Debugf("spdy decompressor: inflating %d compressed bytes on %s direction for stream=%d frameIndex=%d", len(compressed), dir, streamID, frameIndex)
	}
	decoded, err := inf.inflate(compressed, conv.maxHeaderBlockSize())
	if err != nil {
		if conv.opts.DebugTrace {
			logger.Debugf("spdy decompressor: inflate failed on %s direction for stream=%d: %v", dir, streamID, err)
		}
		return nil, err
	}
	if conv.opts.DebugTrace {
		logger.Debugf("spdy decompressor: inflated %d bytes to %d bytes for stream=%d frameIndex=%d", len(compressed), len(decoded), streamID, frameIndex)
	}

	// 捕获域存储: 拷贝一份独立于输入缓冲区的字节 再放入 memo
	owned := make([]byte, len(decoded))
	copy(owned, decoded)
	conv.memo[key] = owned
	return owned, nil
}

// allocFrameIndex 为下一个被处理的帧分配单调递增序号
func (conv *Conversation) allocFrameIndex() uint64 {
	idx := conv.nextFrameIndex
	conv.nextFrameIndex++
	return idx
}

// reuseFrameIndex 让调用方为"已经被捕获过"的一帧重新提供它原先分配到的序号
// spec §6.4 "transport feeder 调用 driver 时附带 (conversation_key, bytes,
// is_visited)" —— is_visited 为真时 调用方必须能拿回与首次解码时一致的
// frameIndex 这样 C3 memo 才会命中 给出 idempotent-redecode spec §3
//
// 序号推进到至少 idx+1 之后 避免后续 allocFrameIndex 产生的新序号与重放的
// 序号发生冲突
func (conv *Conversation) reuseFrameIndex(idx uint64) uint64 {
	if idx >= conv.nextFrameIndex {
		conv.nextFrameIndex = idx + 1
	}
	return idx
}
