// Copyright (c) QueryFlow Authors.
// Licensed under the MIT License.

// Package handlers 实现 HTTP 处理器。
//
// 所有处理器写统一响应信封（success / data / error），错误码
// 经 httpStatusFor 映射为 HTTP 状态。聊天处理器通过 Processor
// 端口依赖编排层，方便在测试中替换。
package handlers
