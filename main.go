package main

import "github.com/ushell/ush/cmd"

func main() {
	cmd.Execute()
}
