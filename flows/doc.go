// Copyright (c) QueryFlow Authors.
// Licensed under the MIT License.

// Package flows 定义内置的两条工作流图。
//
// general_qa 是无分支的三步问答链；text_to_sql 是带条件路由、
// 有界重试与审批门的自然语言转 SQL 图。两者共享 Deps 中声明的
// 能力端口（补全、查询、表结构、审批），通过 RegisterAll 注册
// 到工作流注册表。
//
// 路由决策全部做闭合归一化：分类输出落不进已知标签时默认走
// general 分支；校验输出只有大小写无关的 VALID 才算通过。
package flows
