package main

import (
	"github.com/joho/godotenv"

	"github.com/khrees2412/autoapply/cmd"
)

func main() {
	// Optional: secrets such as AUTOAPPLY_SMTP_PASSWORD may live in .env
	_ = godotenv.Load()
	cmd.Execute()
}
