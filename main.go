package main

import "github.com/derickschaefer/bankview/cmd"

func main() {
	cmd.Execute()
}
