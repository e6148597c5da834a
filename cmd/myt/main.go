package main

import "github.com/jsalmi/mytgo/internal/cmd"

func main() {
	cmd.Execute()
}
