package main

import (
	"errors"
	"fmt"
	"os"

	"fsvault/cmd/fv/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		var findings *commands.FindingsError
		if errors.As(err, &findings) {
			// 差异运行发现了 Medium 及以上的嫌疑：单独的退出码，
			// 让 cron/CI 能把“有发现”和“跑挂了”区分开。
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(2)
	}
}
