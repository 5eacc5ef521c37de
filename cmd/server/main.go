package main

import "kpireview/internal/app/server"

func main() {
	server.Run()
}
