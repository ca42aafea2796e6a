package main

import "github.com/ellavondegurechaff/vmq/cmd"

func main() {
	cmd.Execute()
}
