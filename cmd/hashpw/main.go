// Command hashpw prints the environment values for the admin account:
// a bcrypt hash of a password read without echo and, with -totp, a new
// one-time code secret.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"portfolio-backend/pkg/security"

	"github.com/spf13/pflag"
	"golang.org/x/term"
)

func main() {
	withTOTP := pflag.Bool("totp", false, "also generate a TOTP secret")
	account := pflag.String("account", "admin", "account name shown in the authenticator app")
	issuer := pflag.String("issuer", "portfolio", "issuer shown in the authenticator app")
	pflag.Parse()

	password, err := readPassword()
	if err != nil {
		fmt.Fprintln(os.Stderr, "hashpw:", err)
		os.Exit(1)
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		fmt.Fprintln(os.Stderr, "hashpw:", err)
		os.Exit(1)
	}
	fmt.Printf("ADMIN_PASSWORD_HASH=%s\n", hash)

	if *withTOTP {
		secret, url, err := security.GenerateTOTPSecret(*issuer, *account)
		if err != nil {
			fmt.Fprintln(os.Stderr, "hashpw:", err)
			os.Exit(1)
		}
		fmt.Printf("ADMIN_TOTP_SECRET=%s\n", secret)
		fmt.Fprintf(os.Stderr, "Add to your authenticator: %s\n", url)
	}
}

// readPassword prompts twice on a terminal, or reads one line from a pipe.
func readPassword() (string, error) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		line, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && line == "" {
			return "", fmt.Errorf("read password: %w", err)
		}
		return strings.TrimRight(line, "\r\n"), nil
	}

	fmt.Fprint(os.Stderr, "Password: ")
	first, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	fmt.Fprint(os.Stderr, "Repeat: ")
	second, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	if string(first) != string(second) {
		return "", fmt.Errorf("passwords do not match")
	}
	return string(first), nil
}
