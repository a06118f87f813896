package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"

	"golang.org/x/term"

	"github.com/memberhub/memberhub/internal/auth/admin"
	"github.com/memberhub/memberhub/internal/auth/app"
	"github.com/memberhub/memberhub/pkg/cryptox"
)

func readPassword(prompt string) ([]byte, error) {
	fmt.Fprint(os.Stderr, prompt)
	pw, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	return pw, err
}

func main() {
	cfg := app.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	pepper, err := app.LoadPepper(cfg)
	if err != nil {
		log.Fatal(err)
	}

	st, err := app.OpenStore(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	a := &admin.Admin{
		Store:        st,
		Hasher:       cryptox.Hasher{Pepper: pepper},
		Out:          os.Stdout,
		ReadPassword: readPassword,
	}
	if err := a.Run(ctx, os.Args[1:]); err != nil {
		if errors.Is(err, admin.ErrUsage) {
			fmt.Fprintln(os.Stderr, err)
			st.Close()
			os.Exit(2)
		}
		log.Fatal(err)
	}
}
