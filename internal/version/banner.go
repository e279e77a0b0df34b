package version

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

const banner = `
 _ _                              __
| (_)_   _____  ___ ___  _ __   / _|
| | \ \ / / _ \/ __/ _ \| '_ \ | |_
| | |\ V /  __/ (_| (_) | | | ||  _|
|_|_| \_/ \___|\___\___/|_| |_||_|
`

// ANSI 颜色码
const (
	colorReset  = "\033[0m"
	colorCyan   = "\033[36m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
)

// Detail 启动时额外展示的一项信息（如存储后端、监听地址）
type Detail struct {
	Label string
	Value string
}

// PrintBanner 打印启动 Banner 和版本信息到 stderr
func PrintBanner(details ...Detail) {
	// 检测是否为终端，非终端不输出颜色
	writeBanner(os.Stderr, term.IsTerminal(int(os.Stderr.Fd())), details)
}

func writeBanner(w io.Writer, color bool, details []Detail) {
	lines := append([]Detail{
		{"Version:", Version},
		{"Commit:", Commit},
		{"Build Time:", BuildTime},
	}, details...)

	if !color {
		fmt.Fprint(w, banner)
		fmt.Fprintf(w, "  Live configuration admin\n\n")
		for _, d := range lines {
			fmt.Fprintf(w, "%-14s %s\n", d.Label, d.Value)
		}
		fmt.Fprintln(w)
		return
	}

	fmt.Fprintf(w, "%s%s%s", colorCyan, banner, colorReset)
	fmt.Fprintf(w, "  %sLive configuration admin%s\n\n", colorYellow, colorReset)
	for _, d := range lines {
		fmt.Fprintf(w, "%-14s %s%s%s\n", d.Label, colorGreen, d.Value, colorReset)
	}
	fmt.Fprintln(w)
}
