package main

import "widgethost/internal/cli"

func main() {
	cli.Execute()
}
