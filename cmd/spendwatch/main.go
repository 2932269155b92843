package main

import (
	_ "time/tzdata"

	"github.com/ogulcanaydogan/spendwatch/internal/cli"
)

func main() {
	cli.Execute()
}
