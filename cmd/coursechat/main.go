package main

import (
	"log"

	server "github.com/thereayou/coursechat/cmd/server"
)

func main() {
	srv, err := server.NewServer()
	if err != nil {
		log.Fatalf("startup failed: %v", err)
	}
	if err := srv.Run(); err != nil {
		log.Fatalf("%v", err)
	}
}
