// Package crypto implements the keyed Base64-alphabet shift cipher used by encrypted webhook
// senders. It obfuscates payloads in transit; it is not a cryptographic cipher.
package crypto

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"
)

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789+/"

const padding = '='

var (
	ErrEmptyKey         = errors.New("cipher key must not be empty")
	ErrEmptyCiphertext  = errors.New("ciphertext must not be empty")
	ErrEmptyPlaintext   = errors.New("plaintext must not be empty")
	ErrInvalidCharacter = errors.New("invalid base64 character")
	ErrInvalidUTF8      = errors.New("decrypted message is not valid UTF-8")
)

// Decrypt reverses Encrypt. The ciphertext is a Base64 envelope around a shifted Base64 string;
// each character of that string is shifted back by the code point of the key rune at the same
// position (mod 64), and the result is decoded as UTF-8 text.
func Decrypt(ciphertext, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if ciphertext == "" {
		return "", ErrEmptyCiphertext
	}

	envelope, err := base64.StdEncoding.DecodeString(strings.TrimSpace(ciphertext))
	if err != nil {
		return "", fmt.Errorf("decode envelope: %w", err)
	}
	if !utf8.Valid(envelope) {
		return "", fmt.Errorf("decode envelope: %w", ErrInvalidUTF8)
	}

	shifted, err := shift(string(envelope), []rune(key), -1)
	if err != nil {
		return "", err
	}
	if r := len(shifted) % 4; r != 0 {
		shifted += strings.Repeat(string(padding), 4-r)
	}

	plain, err := base64.StdEncoding.DecodeString(shifted)
	if err != nil {
		return "", fmt.Errorf("decode message: %w", err)
	}
	if !utf8.Valid(plain) {
		return "", ErrInvalidUTF8
	}
	return string(plain), nil
}

// Encrypt produces a ciphertext that Decrypt with the same key turns back into plaintext.
func Encrypt(plaintext, key string) (string, error) {
	if key == "" {
		return "", ErrEmptyKey
	}
	if plaintext == "" {
		return "", ErrEmptyPlaintext
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(plaintext))
	shifted, err := shift(encoded, []rune(key), 1)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString([]byte(shifted)), nil
}

// shift moves every non-padding character of s by dir * (key[i mod len(key)] mod 64) within
// the Base64 alphabet, where i is the character's position.
func shift(s string, key []rune, dir int) (string, error) {
	var b strings.Builder
	b.Grow(len(s))
	i := 0
	for _, c := range s {
		if c == padding {
			b.WriteRune(padding)
			i++
			continue
		}
		idx := strings.IndexRune(alphabet, c)
		if idx < 0 {
			return "", fmt.Errorf("%w: %q", ErrInvalidCharacter, c)
		}
		k := int(key[i%len(key)]) % 64
		b.WriteByte(alphabet[((idx+dir*k)%64+64)%64])
		i++
	}
	return b.String(), nil
}
