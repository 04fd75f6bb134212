package main

import "math/rand"

// randomPayload fills a buffer of the requested size with printable
// ASCII bytes. Any content works since the server never inspects it, it
// only echoes it back, so this stays intentionally simple rather than
// cryptographically random.
func randomPayload(size int) []byte {
	buf := make([]byte, size)
	for i := range buf {
		buf[i] = byte('A' + rand.Intn(26))
	}
	return buf
}
