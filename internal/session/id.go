package session

import (
	"crypto/rand"
	"io"
)

const (
	IDLength = 8

	idAlphabet = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz"
	// Largest multiple of len(idAlphabet) that fits in a byte. Bytes at or
	// above it are rejected so every symbol is equally likely.
	idRejectAbove = 256 - 256%len(idAlphabet)
)

// IDGenerator produces candidate session ids.
type IDGenerator func() (string, error)

func newSessionID() (string, error) {
	return readSessionID(rand.Reader)
}

func readSessionID(r io.Reader) (string, error) {
	out := make([]byte, 0, IDLength)
	var buf [2 * IDLength]byte
	for len(out) < IDLength {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return "", err
		}
		for _, b := range buf {
			if int(b) >= idRejectAbove {
				continue
			}
			out = append(out, idAlphabet[int(b)%len(idAlphabet)])
			if len(out) == IDLength {
				break
			}
		}
	}
	return string(out), nil
}

// ValidID reports whether id has the shape produced by the registry. It is a
// cheap filter for URL path segments; only Exists answers liveness.
func ValidID(id string) bool {
	if len(id) != IDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		c := id[i]
		switch {
		case c >= '0' && c <= '9', c >= 'A' && c <= 'Z', c >= 'a' && c <= 'z':
		default:
			return false
		}
	}
	return true
}
