// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 llm 提供本地 Ollama 模型的生成与向量化接入层。

# 概述

AI 分身的回复由本地部署的 Ollama 服务生成。本包封装 /api/generate、
/api/embeddings 与 /api/tags 三个接口，统一错误语义，并在客户端侧
做限流与指标采集。

# 核心类型

  - Generator：文本生成接口，clone 包只依赖该接口
  - OllamaClient：Ollama HTTP 客户端，实现 Generator
  - GenerateOptions：采样参数（temperature、top_p、num_predict 等）
  - Error / ErrorCode：统一错误码，区分可重试与不可重试错误

# 主要能力

  - 生成：非流式调用，调用方通过 context 控制超时
  - 向量化：供 memory/embed 的 Ollama 嵌入器复用
  - 健康检查：列出已安装模型并确认目标模型存在
  - 限流：基于 golang.org/x/time/rate 的令牌桶
*/
package llm
