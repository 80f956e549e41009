package main

import "os"

func helper() {
	os.Exit(2)
}

func main() {
	helper()
	defer os.Exit(0) // want "osexitcheck os.Exit cannot be called in main function of main package"
	os.Exit(1)       // want "osexitcheck os.Exit cannot be called in main function of main package"
}
