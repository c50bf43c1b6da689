package main

import "github.com/marinade-finance/bonds-settlements/cmd"

func main() {
	cmd.Execute()
}
