// Package main provides the entry point for the spiderbot CLI.
package main

func main() {
	Execute()
}
