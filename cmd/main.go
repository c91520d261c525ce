package main

import (
	"github.com/tessel-lang/go-tessel/pkg/cmd"
)

func main() {
	cmd.Execute()
}
