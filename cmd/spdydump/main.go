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

// Command spdydump 从一段已捕获的字节流中驱动 spdy.Decoder 并把解码记录打印到日志
//
// 它不做任何网络抓包或 TCP 重组 输入始终是调用方已经完成desegmentation交接的
// 原始字节文件 —— 真正的传输层集成被委托给外部协作者 spec §1 Non-goals
package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/spdywire/spdydecode/common"
	"github.com/spdywire/spdydecode/confengine"
	"github.com/spdywire/spdydecode/internal/debugserver"
	"github.com/spdywire/spdydecode/internal/sigs"
	"github.com/spdywire/spdydecode/internal/zerocopy"
	"github.com/spdywire/spdydecode/logger"
	"github.com/spdywire/spdydecode/metrics"
	"github.com/spdywire/spdydecode/spdy"
)

var (
	configPath string
	inputPath  string
)

type dumpConfig struct {
	Logger logger.Options     `config:"logger"`
	Server debugserver.Config `config:"server"`
	Spdy   spdy.Options       `config:"spdy"`
}

func loadConfig(path string) (dumpConfig, error) {
	cfg := dumpConfig{
		Logger: logger.Options{Stdout: true, Level: string(logger.LevelInfo)},
		Spdy:   spdy.DefaultOptions(),
	}
	if path == "" {
		return cfg, nil
	}

	conf, err := confengine.LoadConfigPath(path)
	if err != nil {
		return cfg, err
	}
	if err := conf.Unpack(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

var rootCmd = &cobra.Command{
	Use:     "spdydump",
	Short:   "Decode a captured SPDY v3 byte stream and print structured records",
	Example: "  spdydump --input capture.bin --config spdydump.yaml",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		logger.SetOptions(cfg.Logger)
		build := common.GetBuildInfo()
		metrics.SetBuildInfo(common.Version, build.GitHash, build.Time)

		srv := debugserver.New(cfg.Server)
		if srv != nil {
			go func() {
				if err := srv.ListenAndServe(); err != nil {
					logger.Errorf("debug server exited: %v", err)
				}
			}()
		}

		if inputPath == "" {
			return fmt.Errorf("--input is required")
		}
		raw, err := os.ReadFile(inputPath)
		if err != nil {
			return fmt.Errorf("failed to read input: %w", err)
		}

		conv := spdy.NewConversation(cfg.Spdy)
		sink := spdy.SinkFunc(func(rec *spdy.Record) {
			metrics.IncFrameDecoded(rec.Frame.Type.String())
			for _, d := range rec.Diagnostics {
				metrics.IncDiagnostic(d.Kind.String())
			}
			if dp, ok := rec.Payload.(*spdy.DataPayload); ok && dp.Delivered && len(dp.Body) > 0 {
				metrics.IncBodyAssembled()
			}
			logger.Infof("frame#%d type=%s stream=%d flags=0x%02x len=%d diagnostics=%d",
				rec.FrameIndex, rec.Frame.Type, rec.Frame.StreamID, rec.Frame.Flags, rec.Frame.Length, len(rec.Diagnostics))
		})
		dec := spdy.NewDecoder(conv, sink)

		buf := zerocopy.NewBuffer(raw)
		for {
			records, err := dec.Decode(buf, time.Now())
			if err != nil {
				logger.Errorf("decode stopped: %v", err)
				break
			}
			if len(records) == 0 {
				// 输入已经被 zerocopy.Buffer 一次性读完 后续调用只会返回 io.EOF
				break
			}
		}
		metrics.SetUptime(float64(time.Now().Unix() - common.Started()))

		if srv != nil {
			logger.Infof("decode finished, debug server stays up on %s until terminated", cfg.Server.Address)
			<-sigs.Terminate()
		}
		return conv.Free()
	},
}

func init() {
	rootCmd.Flags().StringVar(&configPath, "config", "", "Configuration file path (optional)")
	rootCmd.Flags().StringVar(&inputPath, "input", "", "Path to a raw captured SPDY byte stream")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
