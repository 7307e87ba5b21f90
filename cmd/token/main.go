// Command token mints a bearer token for the match endpoint using the
// configured JWT secret.
package main

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/seanblong/resumematch/internal/auth"
	"github.com/seanblong/resumematch/internal/config"
)

func main() {
	fs := pflag.NewFlagSet("resumematch-token", pflag.ExitOnError)
	subject := fs.String("subject", "", "Token subject (required)")
	name := fs.String("name", "", "Display name claim")
	email := fs.String("email", "", "Email claim")
	ttl := fs.Duration("ttl", auth.DefaultTTL, "Token lifetime")

	cfg, err := config.Load("", fs)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}
	fs.Usage = cfg.Usage

	if cfg.Auth.JwtSecret == "" {
		log.Fatal().Msg("RESUMEMATCH_AUTH_JWT_SECRET is required")
	}

	a := auth.New(cfg.Auth.JwtSecret, true)
	token, err := a.GenerateJWT(&auth.User{Subject: *subject, Name: *name, Email: *email}, *ttl)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to mint token")
	}
	fmt.Fprintln(os.Stdout, token)
}
