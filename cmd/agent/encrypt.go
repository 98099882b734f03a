package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"agentjungle/internal/infra/config"
)

func runEncrypt(args []string) error {
	return encryptCommand(os.Stdout, os.Stdin, os.Getenv("AGENTJUNGLE_CONFIG_KEY"), args)
}

// encryptCommand prints an "enc:" value for config.yaml. The plaintext comes
// from args, or from the first line of in when args is empty.
func encryptCommand(w io.Writer, in io.Reader, passphrase string, args []string) error {
	if passphrase == "" {
		return errors.New("AGENTJUNGLE_CONFIG_KEY must be set to the passphrase used when loading config")
	}

	plain := strings.Join(args, " ")
	if plain == "" {
		sc := bufio.NewScanner(in)
		if sc.Scan() {
			plain = strings.TrimSpace(sc.Text())
		}
		if err := sc.Err(); err != nil {
			return fmt.Errorf("read value: %w", err)
		}
	}
	if plain == "" {
		return errors.New("usage: agentjungle encrypt VALUE (or pipe VALUE on stdin)")
	}

	enc, err := config.EncryptValue(plain, passphrase)
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "enc:%s\n", enc)
	return nil
}
