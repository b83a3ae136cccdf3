package gpio

import (
	"bytes"
	"fmt"
	"os"
)

// DefaultButtonDevice is the character device exported by the sbtn kernel module.
const DefaultButtonDevice = "/dev/sbtn"

// FileButton reads the button level from a device file that reports "1"
// while the button is pressed and "0" otherwise.
type FileButton struct {
	path string
}

// NewFileButton creates a FileButton and checks that the device is readable.
func NewFileButton(path string) (*FileButton, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open button device: %w", err)
	}
	f.Close()
	return &FileButton{path: path}, nil
}

// Pressed reads the device once.
func (b *FileButton) Pressed() (bool, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		return false, fmt.Errorf("read button device: %w", err)
	}
	return string(bytes.TrimSpace(data)) == "1", nil
}

// Close is a no-op; the device is opened per read.
func (b *FileButton) Close() error {
	return nil
}
