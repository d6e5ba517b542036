// Copyright (c) QueryFlow Authors.
// Licensed under the MIT License.

// Package api 定义 HTTP 接口的请求/响应类型。
// 具体处理器在 api/handlers 子包中。
package api
