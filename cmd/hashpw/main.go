// Command hashpw prints a bcrypt hash for seeding user rows by hand.
package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"taskmanager/core"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var passwordFile string
	var skipStrength bool

	flagSet := pflag.NewFlagSet("hashpw", pflag.ContinueOnError)
	flagSet.StringVar(&passwordFile, "password-file", "", "read the password from this file instead of prompting (\"-\" prompts)")
	flagSet.BoolVar(&skipStrength, "skip-strength-check", false, "hash the password even if it fails the strength rules")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return nil
		}
		return err
	}
	if args := flagSet.Args(); len(args) > 0 {
		return fmt.Errorf("unexpected argument: %s", args[0])
	}

	password, err := readPassword(passwordFile)
	if err != nil {
		return err
	}
	if password == "" {
		return errors.New("empty password")
	}
	if !skipStrength {
		if err := core.ValidatePasswordStrength(password); err != nil {
			return err
		}
	}

	hash, err := core.HashPassword(password)
	if err != nil {
		return err
	}
	fmt.Println(hash)
	return nil
}

// readPassword reads from path, or prompts on the terminal with echo
// disabled when path is empty or "-".
func readPassword(path string) (string, error) {
	if path != "" && path != "-" {
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading %s: %w", path, err)
		}
		return strings.TrimRight(string(data), "\r\n"), nil
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", errors.New("no terminal available for interactive password prompt (use --password-file)")
	}
	fmt.Fprint(os.Stderr, "Password: ")
	raw, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return string(raw), nil
}
