package verify

import (
	"crypto/rand"
	"encoding/binary"
	"fmt"
)

// CodeLength is the number of digits in a verification code.
const CodeLength = 8

var codeModulus = func() int {
	m := 1
	for i := 0; i < CodeLength; i++ {
		m *= 10
	}
	return m
}()

// generateCode draws a fixed-length numeric code from crypto/rand. Codes are
// proof of mailbox possession, so they must not be derivable from the user
// id or the send time.
func generateCode() int {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return int(binary.BigEndian.Uint64(b[:]) % uint64(codeModulus))
}

// formatCode renders a code zero-padded to CodeLength digits.
func formatCode(code int) string {
	return fmt.Sprintf("%0*d", CodeLength, code)
}

// displayCode splits the code into two groups for the email body.
func displayCode(code int) string {
	s := formatCode(code)
	return s[:CodeLength/2] + " " + s[CodeLength/2:]
}
