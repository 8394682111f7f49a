package main

import (
	"truelens/cmd/handlers"
	"truelens/internal/logger"
)

func main() {
	logger.Init()
	handlers.Execute()
}
