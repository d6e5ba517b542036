// Copyright (c) QueryFlow Authors.
// Licensed under the MIT License.

// Package main 是 QueryFlow 服务的入口：加载配置、装配工作流
// 注册表与编排器、启动 HTTP 与 Metrics 服务器。
package main
