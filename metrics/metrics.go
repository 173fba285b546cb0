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

// Package metrics 暴露 spdydump 进程级别的 prometheus 指标
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/spdywire/spdydecode/common"
)

var (
	uptime = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "uptime",
			Help:      "Uptime in seconds",
		},
	)

	buildInfo = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: common.App,
			Name:      "build_info",
			Help:      "Build information",
		},
		[]string{"version", "git_hash", "build_time"},
	)

	framesDecodedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "frames_decoded_total",
			Help:      "Frames decoded total, labelled by frame type",
		},
		[]string{"frame_type"},
	)

	diagnosticsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "diagnostics_total",
			Help:      "Diagnostics attached to decoded frames, labelled by kind",
		},
		[]string{"kind"},
	)

	bodiesAssembledTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: common.App,
			Name:      "bodies_assembled_total",
			Help:      "Entity bodies fully reassembled across DATA frames",
		},
	)
)

// SetUptime 记录进程已运行的秒数
func SetUptime(seconds float64) {
	uptime.Set(seconds)
}

// SetBuildInfo 记录一次性的构建信息 gauge
func SetBuildInfo(version, gitHash, buildTime string) {
	buildInfo.WithLabelValues(version, gitHash, buildTime).Set(1)
}

// IncFrameDecoded 记录一次成功分派的帧 按帧类型打标
func IncFrameDecoded(frameType string) {
	framesDecodedTotal.WithLabelValues(frameType).Inc()
}

// IncDiagnostic 记录一条挂在帧记录上的诊断 按 Kind 打标
func IncDiagnostic(kind string) {
	diagnosticsTotal.WithLabelValues(kind).Inc()
}

// IncBodyAssembled 记录一次完整的 entity body 重组
func IncBodyAssembled() {
	bodiesAssembledTotal.Inc()
}
