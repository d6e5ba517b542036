// Copyright (c) QueryFlow Authors.
// Licensed under the MIT License.

// Package orchestrator 是引擎之上的薄编排层。
//
// 它用一次补全调用在注册表的工作流描述中选出最匹配的流程，
// 选择结果做确定性后处理（小写、去空白、子串包含），落不到
// 已注册名称时回退 general_qa；随后加载会话历史、构造执行状态、
// 以运行超时包裹 Engine.Run，并把新消息写回会话存储。
package orchestrator
