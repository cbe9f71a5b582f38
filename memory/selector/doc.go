// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 selector 为单个人设管理记忆后端的选择、切换与基准测试。

# 概述

Manager 在构造时按偏好顺序尝试打开后端：自动选择模式下依次为
向量后端、历史性能最佳的后端、默认后端；否则为配置的后端与默认后端。
第一个成功打开的后端被绑定，全部失败时返回 ErrNoBackendAvailable，
这是 Manager 唯一对外暴露的错误。

# 核心类型

  - Manager：绑定状态机（uninitialized / auto-selecting / bound），
    委托 AddMessage、ContextFor、Search、SimilarTo、Stats 等操作，
    后端错误记录日志后降级处理。
  - Registry：以 memory.Kind 为键的工厂注册表，注册顺序即基准测试
    顺序与性能并列时的裁决顺序。
  - PerformanceTracker：按人设持久化的基准耗时历史，
    avg_time 始终由 total_time / tests 重新计算。

# 可观测性

Manager 通过 zap 记录日志，可选注入 Prometheus Collector，
并为 memory.add_message、memory.context、memory.benchmark 创建 OpenTelemetry span。
*/
package selector
