package app

import (
	"crypto/rand"
	"fmt"
	"io"
)

const (
	// CodeAlphabet is the character set of session codes.
	CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	// CodeLength is the number of characters in a session code.
	CodeLength = 6
)

// CodeGenerator produces candidate session codes. Uniqueness is checked by the caller.
type CodeGenerator interface {
	NextCode() (string, error)
}

// RandomCodeGenerator draws codes uniformly from CodeAlphabet.
type RandomCodeGenerator struct {
	reader io.Reader
}

func NewCodeGenerator() *RandomCodeGenerator {
	return &RandomCodeGenerator{reader: rand.Reader}
}

// NewCodeGeneratorFromReader is used by tests to make codes deterministic.
func NewCodeGeneratorFromReader(r io.Reader) *RandomCodeGenerator {
	return &RandomCodeGenerator{reader: r}
}

func (g *RandomCodeGenerator) NextCode() (string, error) {
	// Bytes at or above limit are rejected so every character is equally likely.
	limit := byte(256 - 256%len(CodeAlphabet))
	code := make([]byte, 0, CodeLength)
	buf := make([]byte, CodeLength)
	for len(code) < CodeLength {
		if _, err := io.ReadFull(g.reader, buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			code = append(code, CodeAlphabet[int(b)%len(CodeAlphabet)])
			if len(code) == CodeLength {
				break
			}
		}
	}
	return string(code), nil
}
