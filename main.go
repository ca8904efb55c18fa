package main

import "github.com/novandria/bankgateway/cmd"

func main() {
	cmd.Execute()
}
