// Copyright (c) QueryFlow Authors.
// Licensed under the MIT License.

// Package conversation 管理多轮对话的历史存储与上下文裁剪。
//
// Store 是会话历史端口：MemoryStore 用于单机与测试，RedisStore
// 提供跨实例共享与 TTL 过期。ContextWindow 按 token 预算从最新
// 消息向前保留历史，token 计数优先使用 tiktoken，失败时退化为
// 按字符估算。
package conversation
