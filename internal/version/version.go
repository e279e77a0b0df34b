// Package version 提供应用版本信息
// 版本号通过 go build -ldflags 注入
package version

import "fmt"

// 构建信息变量，通过 ldflags 注入
// 构建命令示例:
//
//	go build -ldflags "-X liveconf/internal/version.Version=$(git describe --tags --always) \
//	  -X liveconf/internal/version.Commit=$(git rev-parse --short HEAD) \
//	  -X 'liveconf/internal/version.BuildTime=$(date +%Y-%m-%d\ %H:%M:%S\ %z)'"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String 单行版本描述
func String() string {
	return fmt.Sprintf("liveconf %s (%s, %s)", Version, Commit, BuildTime)
}
