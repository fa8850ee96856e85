package main

import "github.com/safequote/safequote/cmd"

func main() {
	cmd.Execute()
}
