// Command token mints a service token for calling the ledger API.
//
//	JWT_SECRET=... token -service payments-api -ttl 24h
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/josh-kwaku/account-ledger/internal/auth"
	"github.com/josh-kwaku/account-ledger/internal/logging"
)

func main() {
	service := flag.String("service", "", "name of the calling service (required)")
	ttl := flag.Duration("ttl", 24*time.Hour, "token lifetime")
	flag.Parse()

	logging.Init("ledger-token", "info", os.Getenv("APP_ENV"))

	secret := os.Getenv("JWT_SECRET")
	if secret == "" {
		slog.Error("JWT_SECRET is not set")
		os.Exit(1)
	}
	if *service == "" {
		flag.Usage()
		os.Exit(2)
	}

	token, err := auth.GenerateToken(*service, secret, *ttl)
	if err != nil {
		slog.Error("failed to mint token", "error", err)
		os.Exit(1)
	}

	slog.Debug("token minted", "service", *service, "ttl", *ttl)
	fmt.Println(token)
}
