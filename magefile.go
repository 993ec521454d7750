//go:build mage

package main

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/magefile/mage/mg"
)

const (
	BINARY_NAME = "bin/coursechat"
	MAIN_PATH   = "./cmd/coursechat"
)

func Build() error {
	fmt.Println("🔨 Building server binary...")
	return runCmd("go", "build", "-o", BINARY_NAME, MAIN_PATH)
}

func Vet() error {
	fmt.Println("🔍 Running go vet...")
	return runCmd("go", "vet", "./...")
}

func Test() error {
	mg.Deps(Vet)
	fmt.Println("🧪 Running tests...")
	return runCmd("go", "test", "-race", "./...")
}

// Run поднимает сервер без Postgres и Redis
func Run() error {
	fmt.Println("🚀 Starting server with in-memory store...")
	os.Setenv("STORE_DRIVER", "memory")
	if os.Getenv("JWT_SECRET") == "" {
		os.Setenv("JWT_SECRET", "dev-secret")
	}
	return runCmd("go", "run", MAIN_PATH)
}

func Clean() {
	fmt.Println("🧹 Cleaning up...")
	os.Remove(BINARY_NAME)
}

func runCmd(name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd.Run()
}
