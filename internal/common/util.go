package common

// WipeByteArray overwrites b with zeros. Passwords read from the terminal are
// wiped once sent.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
