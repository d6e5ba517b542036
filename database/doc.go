// Copyright (c) QueryFlow Authors.
// Licensed under the MIT License.

// Package database 提供业务数据库的访问能力。
//
// Open 按配置驱动（postgres / mysql / sqlite）建立 gorm 连接池；
// Executor 是工作流执行候选 SQL 的查询端口，GormExecutor 对结果
// 行数做截断保护；Metadata 负责表结构内省，带 TTL 缓存并用
// singleflight 合并并发刷新。
package database
