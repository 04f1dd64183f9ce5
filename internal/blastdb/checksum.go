package blastdb

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// DefaultBlockSize is the read size used when digesting archives.
const DefaultBlockSize = 65536

var (
	// ErrMissingFile is returned by Validate when the archive or its
	// checksum file is absent.
	ErrMissingFile = errors.New("blastdb: archive or checksum file missing")

	// ErrEmptyChecksum is returned when a checksum file holds no digest.
	ErrEmptyChecksum = errors.New("blastdb: checksum file is empty")
)

// MismatchError is returned by Validate when the archive digest differs from
// the published one.
type MismatchError struct {
	Archive string
	Want    string
	Got     string
}

func (e *MismatchError) Error() string {
	return fmt.Sprintf("checksum mismatch for %s: published %s, computed %s", e.Archive, e.Want, e.Got)
}

// ReadChecksum returns the published digest from a checksum file: the first
// whitespace-delimited token of the first non-blank line. The file name that
// usually follows the digest is ignored.
//
//	// nr.00.tar.gz.md5: "2b4b6f1e0c9d...  nr.00.tar.gz"
//	digest, err := ReadChecksum("/data/nr.00.tar.gz.md5")
func ReadChecksum(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if fields := strings.Fields(scanner.Text()); len(fields) > 0 {
			return fields[0], nil
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("read %s: %w", path, err)
	}
	return "", fmt.Errorf("%s: %w", path, ErrEmptyChecksum)
}

// FileDigest returns the hex MD5 digest of the file at path, read in
// blockSize chunks.
func FileDigest(path string, blockSize int) (string, error) {
	if blockSize <= 0 {
		blockSize = DefaultBlockSize
	}

	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := md5.New()
	if _, err := io.CopyBuffer(h, f, make([]byte, blockSize)); err != nil {
		return "", fmt.Errorf("digest %s: %w", path, err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Validate checks archive against the digest published in checksum.
//
// Returns:
//   - ErrMissingFile if either file does not exist
//   - *MismatchError if the digests differ
//   - any read error otherwise
//
// Validate never deletes anything; the caller owns cleanup.
func Validate(archive, checksum string, blockSize int) error {
	for _, p := range []string{archive, checksum} {
		if _, err := os.Stat(p); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("%s: %w", p, ErrMissingFile)
			}
			return err
		}
	}

	want, err := ReadChecksum(checksum)
	if err != nil {
		return err
	}

	got, err := FileDigest(archive, blockSize)
	if err != nil {
		return err
	}

	if !strings.EqualFold(want, got) {
		return &MismatchError{Archive: archive, Want: want, Got: got}
	}
	return nil
}
