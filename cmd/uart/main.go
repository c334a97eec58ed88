package main

import "github.com/allbin/go-uart/cmd"

func main() {
	cmd.Execute()
}
