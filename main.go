package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"dense/app"
)

func main() {
	_ = godotenv.Load()

	cmd := app.AllCommands()
	if err := cmd.Dispatch(os.Args[1:]); err != nil {
		fmt.Printf("**err**: %v\n", err)
		os.Exit(1)
	}
}
