package util

import (
	"fmt"
	"log"
	"strings"
	"unicode"
	"unicode/utf8"

	"liveconf/internal/config"
)

var escapeReplacer = strings.NewReplacer("\n", "\\n", "\r", "\\r", "\t", "\\t")

// SanitizeLogMessage 消毒日志消息，防止日志注入
// 换行、回车、制表符转义为可见形式；其他控制字符输出为 \xNN；超长截断
func SanitizeLogMessage(msg string) string {
	if msg == "" {
		return ""
	}

	msg = escapeReplacer.Replace(msg)

	var builder strings.Builder
	builder.Grow(len(msg))
	for _, r := range msg {
		switch {
		case unicode.IsPrint(r) || r == ' ':
			builder.WriteRune(r)
		case r < 0x80:
			fmt.Fprintf(&builder, "\\x%02x", r)
		}
	}
	msg = builder.String()

	if len(msg) > config.LogMaxMessageLength {
		cut := config.LogMaxMessageLength
		for cut > 0 && !utf8.RuneStart(msg[cut]) {
			cut--
		}
		msg = msg[:cut] + "...[truncated]"
	}
	return msg
}

// SanitizeError 消毒error对象的Error()输出
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeLogMessage(err.Error())
}

// sanitizeArgs 消毒字符串、error 和 Stringer 参数（配置项名、用户名等都来自外部输入）
func sanitizeArgs(args []any) []any {
	out := make([]any, len(args))
	for i, arg := range args {
		switch v := arg.(type) {
		case string:
			out[i] = SanitizeLogMessage(v)
		case error:
			out[i] = SanitizeError(v)
		case fmt.Stringer:
			out[i] = SanitizeLogMessage(v.String())
		default:
			out[i] = v
		}
	}
	return out
}

// SafePrintf 安全的日志打印函数（自动消毒所有参数）
// 用于替代标准库的 log.Printf
func SafePrintf(format string, args ...any) {
	log.Printf(format, sanitizeArgs(args)...)
}

// SafePrint 安全的日志打印函数（自动消毒所有参数）
// 用于替代标准库的 log.Print
func SafePrint(args ...any) {
	log.Print(sanitizeArgs(args)...)
}
