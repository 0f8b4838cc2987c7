package main

import (
	"github.com/masht-bio/masht/cmd"
)

func main() {
	cmd.Execute()
}
