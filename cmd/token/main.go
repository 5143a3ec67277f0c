// Command token mints a signed API token from the service config.
package main

import (
	"fmt"
	"os"
	"time"

	flag "github.com/spf13/pflag"

	"storefront/internal/config"
	"storefront/internal/utils"
)

func main() {
	configPath := flag.StringP("config", "c", "", "path to config file")
	userID := flag.StringP("user", "u", "", "user id the token is issued for")
	tag := flag.StringP("tag", "t", "", "display tag")
	role := flag.StringP("role", "r", utils.RoleMember, "member or admin")
	expire := flag.Duration("expire", 0, "lifetime, defaults to security.jwt.expire")
	flag.Parse()

	if *userID == "" {
		fmt.Fprintln(os.Stderr, "--user is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	ttl := cfg.Security.JWT.Expire
	if *expire > 0 {
		ttl = *expire
	}

	token, err := utils.NewJWTManager(cfg.Security.JWT.Secret, cfg.Security.JWT.Issuer, ttl).
		GenerateToken(*userID, *tag, *role)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	fmt.Println(token)
	fmt.Fprintf(os.Stderr, "expires %s\n", time.Now().Add(ttl).Format(time.RFC3339))
}
