package main

import "github.com/example/deskbook/cmd"

func main() {
	cmd.Execute()
}
