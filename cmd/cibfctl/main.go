package main

import (
	"os"

	"github.com/DulshanSiriwardhana/CIBF-Reservation-Portal/cmd/cibfctl/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
