package auth

import (
	"flag"
	"fmt"
	"io"
	"os"
	"syscall"

	"golang.org/x/term"
)

// GeneratorCommand implements the "auth" subcommand: it produces
// Argon2id credential hashes for ingest authentication.
type GeneratorCommand struct {
	output io.Writer
	errOut io.Writer
}

func NewGeneratorCommand() *GeneratorCommand {
	return &GeneratorCommand{
		output: os.Stdout,
		errOut: os.Stderr,
	}
}

func (g *GeneratorCommand) Execute(args []string) error {
	cmd := flag.NewFlagSet("auth", flag.ContinueOnError)
	cmd.SetOutput(g.errOut)

	secret := cmd.String("s", "", "Secret to hash (will prompt if not provided)")

	cmd.Usage = func() {
		fmt.Fprintln(g.errOut, "Generate ingest credentials for LogCourier")
		fmt.Fprintln(g.errOut, "\nUsage: logcourier auth [options]")
		fmt.Fprintln(g.errOut, "\nExamples:")
		fmt.Fprintln(g.errOut, "  # Generate Argon2id credential hash (prompts for the secret)")
		fmt.Fprintln(g.errOut, "  logcourier auth")
		fmt.Fprintln(g.errOut, "\nOptions:")
		cmd.PrintDefaults()
	}

	if err := cmd.Parse(args); err != nil {
		return err
	}

	value := *secret
	if value == "" {
		pass1 := g.promptSecret("Enter secret: ")
		pass2 := g.promptSecret("Confirm secret: ")
		if pass1 != pass2 {
			return fmt.Errorf("secrets don't match")
		}
		value = pass1
	}

	phcHash, err := HashSecret(value)
	if err != nil {
		return err
	}

	fmt.Fprintln(g.output, "\n# TOML Configuration (add to logcourier.toml):")
	fmt.Fprintln(g.output, "[source.tcp.auth]")
	fmt.Fprintln(g.output, "enabled = true")
	fmt.Fprintf(g.output, "credential_hashes = [%q]\n", phcHash)

	return nil
}

func (g *GeneratorCommand) promptSecret(prompt string) string {
	fmt.Fprint(g.errOut, prompt)
	secret, err := term.ReadPassword(int(syscall.Stdin))
	fmt.Fprintln(g.errOut)
	if err != nil {
		fmt.Fprintf(g.errOut, "Failed to read secret: %v\n", err)
		os.Exit(1)
	}
	return string(secret)
}
