package main

import "github.com/tanq16/resumedl/cmd"

func main() {
	cmd.Execute()
}
