// Package server 管理 HTTP 服务器的生命周期：
// 非阻塞启动、异步错误上报、信号驱动的优雅关闭。
package server
