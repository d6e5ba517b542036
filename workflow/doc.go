// Copyright (c) QueryFlow Authors.
// Licensed under the MIT License.

/*
Package workflow 提供工作流图定义与执行引擎。

# 概述

workflow 包实现了 QueryFlow 的核心编排系统：以命名步骤（节点）和
固定 / 条件边构成的有向图描述多步处理流程，由 Engine 按严格串行
语义逐步推进，直到到达终止标记 End 或发生不可恢复错误。

# 核心类型

  - State        — 贯穿一次运行的执行状态（消息、SQL 上下文、追踪）
  - Graph        — 不可变的工作流图（节点、边、入口）
  - StepFunc     — 步骤执行函数 State → State
  - DecisionFunc — 条件边的路由决策函数
  - Engine       — 执行引擎（步数预算、zap 日志、OTel span）
  - Registry     — 工作流注册表（按名称注册 / 查询 / 枚举）

# 执行语义

  - 同一次运行内步骤严格串行，互不并发
  - 不同会话的运行可共享同一只读 Graph 并发执行
  - 步骤返回的能力故障记录到 State.Err 并终止运行，不向 Run 调用方抛出
  - 定义错误（未知步骤、不可路由决策、步数预算耗尽）作为 error 返回
  - 循环必须由步骤自身的重试计数约束；步数预算兜底防御畸形图
*/
package workflow
