package wav

import (
	"errors"
	"fmt"
	"io"
	"os"
)

// FixFile applies Fix to the header of the WAV file at path, touching only
// the bytes Fix changes. The body of the file is never rewritten, so large
// recordings can be repaired without loading them.
func FixFile(path string) error {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return err
	}
	size := info.Size()
	if size > int64(^uint32(0)) {
		return fmt.Errorf("%s: %d bytes exceeds the RIFF size limit", path, size)
	}

	// Only the first 78 bytes are ever patched. Read them into a window
	// and let Fix compute the sizes from the real file length.
	head := make([]byte, listSizeOffset+4)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return err
	}
	head = head[:n]

	if err := patch(head, size); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	if _, err := f.WriteAt(head, 0); err != nil {
		return err
	}
	return f.Sync()
}
