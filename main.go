package main

import (
	"github.com/sidkik/ccledger/cmd"
	"github.com/sidkik/ccledger/cmd/util"
)

func main() {
	defer util.HandlePanic()
	cmd.Execute()
}
