package main

import (
	"github.com/pathkit/pathkit/cmd"
)

func main() {
	cmd.Execute()
}
