// Package main provides the entry point for the blurguard CLI.
package main

func main() {
	Execute()
}
