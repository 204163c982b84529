package cli

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// errNotConfirmed aborts a destructive command the operator declined
var errNotConfirmed = errors.New("aborted")

func promptInput(prompt string) string {
	fmt.Fprint(stdout, prompt)
	reader := bufio.NewReader(stdin)
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

// promptSecret reads without echo on a terminal
func promptSecret(prompt string) string {
	if !isTerminal() {
		return promptInput(prompt)
	}
	fmt.Fprint(stdout, prompt)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(stdout)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(secret))
}

// confirm asks before a destructive action. Without a terminal the
// action is refused unless --yes was given.
func confirm(prompt string, yes bool) error {
	if yes {
		return nil
	}
	if !isTerminal() {
		return fmt.Errorf("refusing to run without confirmation on a non-interactive input; pass --yes")
	}
	answer := strings.ToLower(promptInput(prompt + " [y/N]: "))
	if answer != "y" && answer != "yes" {
		return errNotConfirmed
	}
	return nil
}
