// =============================================================================
// AIClone 主入口
// =============================================================================
// 人设克隆对话与记忆管理命令行
//
// 使用方法:
//
//	aiclone chat --persona Alex                    # 与演示人设对话
//	aiclone chat --persona alex.yaml --config c.yaml
//	aiclone benchmark --persona Alex               # 记忆后端基准测试
//	aiclone report --persona Alex                  # 性能报告
//	aiclone stats --persona Alex                   # 记忆统计
//	aiclone search --persona Alex --query coffee   # 检索记忆
//	aiclone clear --persona Alex --yes             # 清空记忆
//	aiclone health                                 # 检查 Ollama
//	aiclone version                                # 显示版本信息
// =============================================================================

package main

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/BaSui01/aiclone/config"
)

// =============================================================================
// 📦 版本信息（构建时注入）
// =============================================================================

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// =============================================================================
// 🎯 主函数
// =============================================================================

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run 分发子命令并返回进程退出码
func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	if len(args) < 1 {
		printUsage(stderr)
		return 1
	}

	cmd := commands[args[0]]
	switch args[0] {
	case "version":
		printVersion(stdout)
		return 0
	case "help", "-h", "--help":
		printUsage(stdout)
		return 0
	}
	if cmd == nil {
		fmt.Fprintf(stderr, "Unknown command: %s\n", args[0])
		printUsage(stderr)
		return 1
	}

	if err := cmd(args[1:], stdin, stdout, stderr); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// =============================================================================
// 📋 版本和帮助
// =============================================================================

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "AIClone %s\n", Version)
	fmt.Fprintf(w, "  Build Time: %s\n", BuildTime)
	fmt.Fprintf(w, "  Git Commit: %s\n", GitCommit)
}

func printUsage(w io.Writer) {
	fmt.Fprintln(w, `AIClone - persona clones with conversational memory

Usage:
  aiclone <command> [options]

Commands:
  chat       Talk to a persona clone
  benchmark  Benchmark every memory backend for a persona
  report     Show the memory performance report
  stats      Show memory statistics as JSON
  search     Search a persona's memory
  clear      Delete a persona's memory
  health     Check that Ollama is reachable and the model is installed
  version    Show version information
  help       Show this help message

Common options:
  --config <path>    Path to configuration file (YAML)
  --persona <p>      Persona answers file (YAML/JSON) or demo name (Alex, Sam)

Options for 'chat':
  --message <text>   Send one message and exit

Options for 'search':
  --query <text>     Text to search for
  --limit <n>        Maximum results (default 5)
  --similar          Use similarity search when the backend supports it

Options for 'clear':
  --yes              Confirm deletion

Environment variables override configuration with the AICLONE_ prefix,
e.g. AICLONE_MEMORY_BACKEND=keyword or AICLONE_LLM_MODEL=mistral.`)
}

// =============================================================================
// 🔧 日志初始化
// =============================================================================

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	// 对话输出占用 stdout，日志默认写 stderr
	outputs := cfg.OutputPaths
	if len(outputs) == 0 {
		outputs = []string{"stderr"}
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      encoding == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      outputs,
		ErrorOutputPaths: []string{"stderr"},
	}

	opts := []zap.Option{}
	if cfg.EnableCaller {
		opts = append(opts, zap.AddCaller())
	}
	if cfg.EnableStacktrace {
		opts = append(opts, zap.AddStacktrace(zapcore.ErrorLevel))
	}

	logger, err := zapConfig.Build(opts...)
	if err != nil {
		// 回退到基本 logger
		logger, _ = zap.NewProduction()
	}

	return logger
}
