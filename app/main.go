package main

import (
	"github.com/fths/urldex/app/cmd"
)

func main() {
	cmd.Execute()
}
