package clipboard

import (
	"errors"

	cb "github.com/atotto/clipboard"
)

var ErrUnsupported = errors.New("no clipboard utility available")

// Available reports whether a system clipboard can be reached. On Linux
// this needs xclip, xsel or wl-clipboard.
func Available() bool {
	return !cb.Unsupported
}

func Copy(text string) error {
	if !Available() {
		return ErrUnsupported
	}
	return cb.WriteAll(text)
}

func Read() (string, error) {
	if !Available() {
		return "", ErrUnsupported
	}
	return cb.ReadAll()
}
