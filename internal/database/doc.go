// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 database 提供基于 GORM 的数据库连接打开与连接池管理，支持健康检查、
统计信息采集与事务重试。

# 概述

Open 按驱动名（sqlite、postgres、mysql）选择 GORM 方言并建立连接，
SQLite 默认开启 WAL 与 busy_timeout。PoolManager 封装 GORM 与
database/sql 的连接池配置，统一管理连接生命周期，后台健康检查
定时探活，异常时通过 zap 日志输出诊断信息。

# 核心类型

  - PoolManager：连接池管理器，持有 GORM DB 实例与底层 sql.DB，
    提供 DB()、Ping()、Stats()、Close() 等生命周期方法。
  - PoolConfig：连接池配置，包含名称、最大空闲连接数、最大打开连接数、
    连接最大生命周期、空闲超时与健康检查间隔。
  - TransactionFunc：事务回调函数类型。

# 主要能力

  - 多驱动：纯 Go 的 glebarez/sqlite 为默认驱动，无需 cgo。
  - 事务管理：WithTransaction 提供单次事务执行，
    WithTransactionRetry 支持指数退避重试（死锁、序列化失败、SQLite 锁竞争）。
  - 指标：通过 WithCollector 记录事务耗时与连接数。
*/
package database
