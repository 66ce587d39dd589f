package main

import (
	"github.com/droprescue/droprescue/cmd"
)

func main() {
	cmd.Execute()
}
