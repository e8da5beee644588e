package main

import "realtime-backend/internal/cli"

func main() {
	cli.Execute()
}
