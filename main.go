package main

import "github.com/surge-downloader/riptide/cmd"

func main() {
	cmd.Execute()
}
