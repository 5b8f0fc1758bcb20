package main

// signal_cipher encrypts or decrypts webhook payloads for bots that send encrypted signals.
//
// Usage (from the repository root):
//   go run ./scripts/signal_cipher -mode encrypt < payload.json
//   go run ./scripts/signal_cipher -mode decrypt -key other-key < ciphertext.txt
//   go run ./scripts/signal_cipher -mode encrypt -wrap < payload.json   # prints {"data": "..."}
//
// The key defaults to ENCRYPTION_KEY (read from the environment or .env).

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"

	"signal-gateway/pkg/crypto"
)

func main() {
	_ = godotenv.Load()
	if err := run(os.Args[1:], os.Stdin, os.Stdout); err != nil {
		log.Fatalf("signal_cipher: %v", err)
	}
}

func run(args []string, in io.Reader, out io.Writer) error {
	fs := flag.NewFlagSet("signal_cipher", flag.ContinueOnError)
	mode := fs.String("mode", "encrypt", "encrypt or decrypt")
	key := fs.String("key", os.Getenv("ENCRYPTION_KEY"), "cipher key")
	wrap := fs.Bool("wrap", false, `wrap the ciphertext as a webhook body {"data": ...}`)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *key == "" {
		return errors.New("no key: pass -key or set ENCRYPTION_KEY")
	}

	raw, err := io.ReadAll(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	text := strings.TrimSpace(string(raw))

	switch *mode {
	case "encrypt":
		ciphertext, err := crypto.Encrypt(text, *key)
		if err != nil {
			return err
		}
		if *wrap {
			return json.NewEncoder(out).Encode(map[string]string{"data": ciphertext})
		}
		_, err = fmt.Fprintln(out, ciphertext)
		return err
	case "decrypt":
		var body struct {
			Data string `json:"data"`
		}
		if json.Unmarshal([]byte(text), &body) == nil && body.Data != "" {
			text = body.Data
		}
		plaintext, err := crypto.Decrypt(text, *key)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, plaintext)
		return err
	}
	return fmt.Errorf("unknown mode %q", *mode)
}
