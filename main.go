package main

import (
	"sizefit-service/app"
)

func main() {
	app.Run()
}
