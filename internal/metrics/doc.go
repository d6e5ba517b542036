// Copyright (c) QueryFlow Authors.
// Licensed under the MIT License.

// Package metrics 提供 Prometheus 指标收集。
// Collector 同时实现工作流引擎的 Observer 接口，按流程与步骤
// 维度记录运行计数与耗时。
package metrics
