// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供命令行进程内的运维 HTTP 端点。

# 核心类型

  - Manager：封装 net/http.Server，非阻塞启动，Shutdown 幂等，
    Errors() 返回异步错误通道。
  - Handler：/metrics 暴露 Prometheus gatherer，/healthz 执行
    注册的检查项，任一失败返回 503 与逐项 JSON 报告。
*/
package server
