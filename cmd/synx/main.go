package main

import (
	"context"
	"fmt"
	"os"
)

const version = "0.1.0"

func main() {
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Println(version)
		os.Exit(0)
	}

	ctx := context.Background()

	app, err := Bootstrap(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "synx: %v\n", err)
		os.Exit(2)
	}

	code, err := app.Dispatch(ctx, os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "synx: %v\n", err)
		if code == 0 {
			code = 2
		}
	}
	os.Exit(code)
}
