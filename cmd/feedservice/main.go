package main

import (
	"github.com/monngon/feed-service/internal/app"
)

func main() {
	app.Start()
}
