// Command hash-generator prints bcrypt hashes for seeding identities directly
// into the database. Passwords are taken from arguments or, when none are
// given, one per line from stdin. Each password must satisfy the registration
// strength policy.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/phrazzld/taskhub-auth/internal/domain"
	"github.com/phrazzld/taskhub-auth/internal/service/auth"
)

func main() {
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func run(args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("hash-generator", flag.ContinueOnError)
	cost := fs.Int("cost", 12, "bcrypt cost")
	if err := fs.Parse(args); err != nil {
		return err
	}

	hasher, err := auth.NewBcryptHasher(*cost)
	if err != nil {
		return err
	}

	passwords := fs.Args()
	if len(passwords) == 0 {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			if line := strings.TrimRight(scanner.Text(), "\r"); line != "" {
				passwords = append(passwords, line)
			}
		}
		if err := scanner.Err(); err != nil {
			return fmt.Errorf("failed to read passwords: %w", err)
		}
	}
	if len(passwords) == 0 {
		return fmt.Errorf("no passwords given")
	}

	for i, password := range passwords {
		if err := domain.CheckPasswordStrength(password); err != nil {
			return fmt.Errorf("password %d: %w", i+1, err)
		}
		hash, err := hasher.Hash(password)
		if err != nil {
			return fmt.Errorf("password %d: %w", i+1, err)
		}
		fmt.Fprintln(out, hash)
	}
	return nil
}
