// Copyright (c) QueryFlow Authors.
// Licensed under the MIT License.

// Package llm 定义大语言模型补全能力的端口与实现。
//
// Provider 接口是工作流步骤访问模型的唯一入口，OpenAIProvider
// 实现兼容 OpenAI chat/completions 协议的 HTTP 客户端，内置
// 客户端限流与结构化错误映射（429 与 5xx 可重试，其余 4xx 视为致命）。
package llm
