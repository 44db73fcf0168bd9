package main

import "github.com/spendwise/spendwise/cmd"

func main() {
	cmd.Execute()
}
