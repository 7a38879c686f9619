// Command token prints a signed access token for local testing of the
// bearer-auth mode:
//
//	go run ./cmd/token -user U1 -ttl 1h
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/event-seat-reservation/internal/utils"
)

func main() {
	_ = godotenv.Load()
	user := flag.String("user", "", "user id to put in the sub claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "HMAC secret (defaults to JWT_SECRET)")
	flag.Parse()

	if *user == "" || *secret == "" {
		log.Fatal("both -user and a secret (flag or JWT_SECRET) are required")
	}
	tok, err := utils.NewAccessToken(*secret, *user, *ttl)
	if err != nil {
		log.Fatalf("sign token: %v", err)
	}
	fmt.Println(tok.Token)
}
