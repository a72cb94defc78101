package main

import "github.com/ideamans/go-sheetfeed/cmd/sheetfeed/cmd"

func main() {
	cmd.Execute()
}
