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

// Package debugserver 提供 spdydump 的 /metrics 与 /debug/pprof 调试端点
package debugserver

import (
	"net"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/spdywire/spdydecode/logger"
)

// Config 是调试服务器的可识别配置项 spec §10 AMBIENT STACK
type Config struct {
	Enabled bool          `config:"enabled"`
	Address string        `config:"address"`
	Pprof   bool          `config:"pprof"`
	Timeout time.Duration `config:"timeout"`
}

// Server 包装一个 gorilla/mux 路由器 暴露 prometheus 指标与 pprof 端点
type Server struct {
	config Config
	router *mux.Router
	server *http.Server
}

// New 创建一个 Server 实例 config.Enabled 为 false 时返回 nil
func New(config Config) *Server {
	if !config.Enabled {
		return nil
	}

	router := mux.NewRouter()
	s := &Server{
		config: config,
		router: router,
		server: &http.Server{
			Handler:      router,
			ReadTimeout:  config.Timeout,
			WriteTimeout: config.Timeout,
		},
	}
	router.Methods(http.MethodGet).Path("/metrics").Handler(promhttp.Handler())
	if config.Pprof {
		s.registerPprofRoutes()
	}
	return s
}

// ListenAndServe 阻塞式启动调试服务器
func (s *Server) ListenAndServe() error {
	l, err := net.Listen("tcp", s.config.Address)
	if err != nil {
		return err
	}
	logger.Infof("debug server listening on %s", s.config.Address)
	return s.server.Serve(l)
}

func (s *Server) registerPprofRoutes() {
	s.router.Methods(http.MethodGet).Path("/debug/pprof/cmdline").HandlerFunc(pprof.Cmdline)
	s.router.Methods(http.MethodGet).Path("/debug/pprof/profile").HandlerFunc(pprof.Profile)
	s.router.Methods(http.MethodGet).Path("/debug/pprof/symbol").HandlerFunc(pprof.Symbol)
	s.router.Methods(http.MethodGet).Path("/debug/pprof/trace").HandlerFunc(pprof.Trace)
	s.router.Methods(http.MethodGet).Path("/debug/pprof/{other}").HandlerFunc(pprof.Index)
}
