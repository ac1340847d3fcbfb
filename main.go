package main

import (
	"github.com/Jorge5452/Melodify-Deezer/cmd"
)

func main() {
	cmd.Execute()
}
