// 版权所有 2024 AgentFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 clone 实现克隆人设的单轮对话循环。

每一轮依次执行：组装提示词（系统提示词、记忆上下文、RESPONSE STYLE 指令、
当前消息），在超时控制下调用 llm.Generator，按人设后处理回复，
最后把用户消息与回复写回记忆。生成失败时返回致歉文本，本轮不写入记忆。

# 后处理

PostProcess 去除首尾空白；对偏好简短回复的人设，超过软上限
（very short 150 字符，short 250 字符）时调用 Shorten 按整句保留，
必要时按年龄压缩首句；最后去掉结尾不完整的句子。
*/
package clone
