// Copyright (c) QueryFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 QueryFlow 框架的全局共享类型定义。

# 概述

types 是框架最底层的公共包，不依赖任何内部包，为 workflow、flows、llm、
database、api 等上层模块提供统一的类型契约。所有跨包共享的结构体、枚举
和错误码均定义于此，以避免循环依赖。

# 核心类型

  - Message / Role    — 对话消息（user / assistant / system）
  - Error / ErrorCode — 结构化错误体系，含 Retryable 标记与错误链
  - ResultSet         — SQL 查询结果（列名 + 行记录）
  - TableRef          — 表引用（名称 + 选择理由）

# 错误分类

定义错误（图或注册表构造缺陷）、能力故障（补全端口 / 查询端口失败）与
预算耗尽各有独立错误码，调用方可通过 GetErrorCode / IsRetryable 区分
处理策略。
*/
package types
