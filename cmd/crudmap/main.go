// Package main provides the crudmap CLI entry point.
package main

import "github.com/leapstack-labs/crudmap/internal/cli"

func main() {
	cli.Execute()
}
