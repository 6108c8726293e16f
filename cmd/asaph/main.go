package main

import (
	"github.com/rnowling/asaph"
)

func main() {
	asaph.Main()
}
