package main

import "market-price-alerts/internal/cli"

func main() {
	cli.Execute()
}
