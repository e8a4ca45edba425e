// Copyright 2026 The OrcaROOT Authors
// SPDX-License-Identifier: Apache-2.0

package intake

import (
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
	"github.com/zeebo/blake3"

	"github.com/sjmeijer/orcaroot/lib/ringbuffer"
)

// ErrTrailingBytes is returned when the last file ends part way
// through a word.
var ErrTrailingBytes = errors.New("intake: stream ends inside a word")

// digestKey is the BLAKE3 key for stream digests: the ASCII domain
// name, zero-padded to 32 bytes.
var digestKey = [32]byte{
	'o', 'r', 'c', 'a', 'r', 'o', 'o', 't', '.', 's', 't', 'r', 'e', 'a', 'm', 0,
	0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// FileDigest records a fully read input file.
type FileDigest struct {
	Path  string `cbor:"path"`
	Bytes int64  `cbor:"bytes"`
	// Digest is the hex keyed BLAKE3 hash of the decompressed stream.
	Digest string `cbor:"digest"`
}

// FileReader reads recorded ORCA streams from a list of files, in the
// order they were added, as one continuous stream. Files ending in
// .zst or .lz4 are decompressed on the fly. It follows the same Read
// contract as [SocketReader].
type FileReader struct {
	logger *slog.Logger

	pending []string

	current     io.Reader
	closeFile   func() error
	currentPath string
	hasher      *blake3.Hasher
	currentSize int64

	digests []FileDigest
	err     error
}

// NewFileReader returns a reader with no files. A nil logger uses
// slog.Default().
func NewFileReader(logger *slog.Logger) *FileReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &FileReader{logger: logger}
}

// AddFile queues path to be read after every file already added.
func (f *FileReader) AddFile(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("adding input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("adding input file: %s is a directory", path)
	}
	f.pending = append(f.pending, path)
	return nil
}

// Read implements io.Reader with the [SocketReader.Read] contract.
func (f *FileReader) Read(p []byte) (int, error) {
	if len(p)%ringbuffer.WordSize != 0 {
		return 0, fmt.Errorf("%w: got %d", ErrUnalignedRead, len(p))
	}
	if len(p) == 0 {
		return 0, nil
	}
	if f.err != nil {
		return 0, io.EOF
	}

	n := 0
	for n < len(p) {
		if f.current == nil {
			if len(f.pending) == 0 {
				break
			}
			if err := f.open(f.pending[0]); err != nil {
				f.fail(err)
				break
			}
			f.pending = f.pending[1:]
		}

		read, err := f.current.Read(p[n:])
		n += read
		if errors.Is(err, io.EOF) {
			if err := f.finishFile(); err != nil {
				f.fail(err)
				break
			}
			continue
		}
		if err != nil {
			f.fail(fmt.Errorf("reading %s: %w", f.currentPath, err))
			f.closeCurrent()
			break
		}
	}

	if n == len(p) {
		return n, nil
	}
	if partial := n % ringbuffer.WordSize; partial != 0 {
		n -= partial
		if f.err == nil {
			f.fail(fmt.Errorf("%w: %d trailing bytes", ErrTrailingBytes, partial))
		}
	}
	return n, io.EOF
}

// open starts reading path, choosing a decompressor from its
// extension.
func (f *FileReader) open(path string) error {
	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("opening input file: %w", err)
	}

	var (
		source    io.Reader = file
		closeFile           = file.Close
	)
	switch filepath.Ext(path) {
	case ".zst":
		decoder, err := zstd.NewReader(file, zstd.WithDecoderConcurrency(1))
		if err != nil {
			file.Close()
			return fmt.Errorf("opening zstd stream %s: %w", path, err)
		}
		source = decoder
		closeFile = func() error {
			decoder.Close()
			return file.Close()
		}
	case ".lz4":
		source = lz4.NewReader(file)
	}

	hasher, err := blake3.NewKeyed(digestKey[:])
	if err != nil {
		closeFile()
		return fmt.Errorf("creating stream digest: %w", err)
	}

	f.currentSize = 0
	f.current = &countingReader{reader: io.TeeReader(source, hasher), count: &f.currentSize}
	f.closeFile = closeFile
	f.currentPath = path
	f.hasher = hasher
	f.logger.Info("reading input file", "path", path)
	return nil
}

// finishFile closes the current file and records its digest.
func (f *FileReader) finishFile() error {
	digest := FileDigest{
		Path:   f.currentPath,
		Bytes:  f.currentSize,
		Digest: hex.EncodeToString(f.hasher.Sum(nil)),
	}
	err := f.closeFile()
	f.current = nil
	f.closeFile = nil
	f.hasher = nil
	if err != nil {
		return fmt.Errorf("closing %s: %w", digest.Path, err)
	}
	f.digests = append(f.digests, digest)
	f.logger.Info("input file complete",
		"path", digest.Path,
		"bytes", digest.Bytes,
		"blake3", digest.Digest,
	)
	return nil
}

func (f *FileReader) closeCurrent() {
	if f.closeFile != nil {
		f.closeFile()
	}
	f.current = nil
	f.closeFile = nil
	f.hasher = nil
}

func (f *FileReader) fail(err error) {
	f.err = err
	f.logger.Error("input stream failed", "error", err)
}

// OK reports whether every file so far was read without error.
func (f *FileReader) OK() bool {
	return f.err == nil
}

// Err returns the error that ended the stream, if any.
func (f *FileReader) Err() error {
	return f.err
}

// Digests returns the files read to completion so far.
func (f *FileReader) Digests() []FileDigest {
	return append([]FileDigest(nil), f.digests...)
}

// Close releases the file being read, if any. Files not yet opened
// are dropped.
func (f *FileReader) Close() error {
	f.pending = nil
	if f.closeFile == nil {
		return nil
	}
	err := f.closeFile()
	f.current = nil
	f.closeFile = nil
	f.hasher = nil
	return err
}

type countingReader struct {
	reader io.Reader
	count  *int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.reader.Read(p)
	*c.count += int64(n)
	return n, err
}
