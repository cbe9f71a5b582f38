// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 persona 定义由问卷答案构建的克隆人设，并生成提示词。

# 核心类型

  - Persona：clone_name、basic_info、communication_style、
    personality_traits、interests 五部分答案，可从 YAML 或 JSON 文件加载。
  - ResponseLength：回复长度偏好，决定后处理的软上限。
  - MessageShape：按问候、简短、复杂请求对消息分类。

# 提示词

SystemPrompt 渲染角色设定提示词；ResponseInstruction 结合长度偏好、
外向性、表达力、年龄段与消息形态生成 RESPONSE STYLE 指令。
Demos 提供内置的 Alex 与 Sam 两个演示人设。
*/
package persona
