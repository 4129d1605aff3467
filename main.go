package main

import (
	"github.com/maxgio92/privtrace/pkg/cmd"
)

func main() {
	cmd.Execute()
}
