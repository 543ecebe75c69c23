package main

import "commsub_backend/internal/app"

func main() {
	app.Run()
}
