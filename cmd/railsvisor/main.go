package main

import (
	"github.com/charliek/railsvisor/internal/cli"
)

func main() {
	cli.Execute()
}
