package main

import "github.com/lalunalounge/restaurant-ordering/cmd"

func main() {
	cmd.Execute()
}
