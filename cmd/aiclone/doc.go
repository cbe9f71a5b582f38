// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
aiclone 是人设克隆的命令行入口。

# 子命令

  - chat：与人设对话，--message 发送单条消息后退出，否则进入交互循环
    （/stats、/summary、/profile、/switch、/quit）。
  - benchmark、report：对全部记忆后端做基准测试并输出性能报告。
  - stats、search、clear：查看、检索与清空人设记忆。
  - health：检查 Ollama 可达且模型已安装。

# 配置

配置按 默认值 → YAML 文件 → AICLONE_ 环境变量 的顺序加载。
对话输出写 stdout，日志默认写 stderr。
*/
package main
