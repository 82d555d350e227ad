package main

import (
	"sessionscribe/cmd/sessionscribe/cmd"
)

func main() {
	cmd.Execute()
}
