// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 cache 提供基于 Redis 的缓存管理能力，作为嵌入向量缓存的
跨进程共享层。

# 概述

本包封装 go-redis 客户端，为上层业务提供统一的缓存读写接口。
Manager 负责连接生命周期管理，包括初始化、健康检查与优雅关闭。
memory/embed 的 CachedEmbedder 通过 GetVector/SetVector 将
本地 LRU 未命中的内容哈希回退到 Redis 查询。

# 核心类型

  - Manager：缓存管理器，持有 Redis 客户端与连接池配置，
    提供 Get/Set 基础操作以及 GetVector/SetVector 向量读写。
  - Config：缓存配置，包含地址、密码、键前缀、连接池大小、
    默认 TTL 与健康检查间隔等参数。

# 主要能力

  - 键值读写：所有键自动添加 KeyPrefix，ttl 为 0 时使用 DefaultTTL。
  - 健康检查：后台定时 Ping 检测，异常时通过 zap 日志告警，Close 时退出。
  - 错误语义：Get 未命中返回 ErrCacheMiss，关闭后返回 ErrClosed；
    GetVector 将未命中转换为 ok=false。
*/
package cache
