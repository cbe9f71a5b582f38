// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 memory 定义 AI 分身的对话记忆引擎核心抽象。

# 概述

每个分身（persona）拥有一份只追加的对话日志。引擎提供三种可互换的
记忆后端，它们共享同一套消息模型与 Backend 接口，由 memory/selector
中的管理器按基准测试结果自动选择。

# 核心类型

  - Message：不可变的对话消息，ID 为从 0 开始的追加序号
  - SearchResult / ContextEntry：检索结果与上下文条目
  - Backend：所有后端必须实现的接口，Context 为必选能力
  - Capabilities：后端能力声明，替代运行时方法探测
  - Kind：后端枚举（rolling、keyword、vector）

# 主要能力

  - ExtractKeywords / ExtractTopics：确定性的关键词与话题抽取
  - AssembleContext：近期消息 + 相关消息的上下文拼装，按消息 ID 去重
  - FormatContext：将上下文条目渲染为 "[HH:MM] speaker: content" 文本

# 子包

  - memory/store：消息日志存储（内存 / JSON 文件）
  - memory/embed：向量化接口、哈希占位实现、Ollama 实现与缓存
  - memory/keyword、memory/vector、memory/rolling：三种后端
  - memory/selector：后端管理、基准测试与性能记录
*/
package memory
