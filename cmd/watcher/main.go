package main

import "github.com/vietddude/deposit-watcher/internal/cli"

func main() {
	cli.Execute()
}
