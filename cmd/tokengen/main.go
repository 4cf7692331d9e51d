package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/vieux-grimoire/books-api/internal/auth"
)

func main() {
	var (
		secret = flag.String("secret", os.Getenv("JWT_SECRET"), "HS256 signing secret (defaults to JWT_SECRET)")
		user   = flag.String("user", "", "user id to embed in the token")
		ttl    = flag.Duration("ttl", 24*time.Hour, "token lifetime")
	)
	flag.Parse()

	if *secret == "" {
		log.Fatal("a signing secret is required (-secret or JWT_SECRET)")
	}
	if *user == "" {
		log.Fatal("-user is required")
	}

	token, err := auth.NewToken(*secret, *user, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(token)
}
