package utils

import (
	"bufio"
	"errors"

	//#nosec G501 -- md5 is part of the build-info checksum triple.
	"crypto/md5"
	//#nosec G505 -- sha1 is part of the build-info checksum triple.
	"crypto/sha1"
	"encoding/hex"
	"hash"
	"io"
	"os"
	"sync"

	"github.com/minio/sha256-simd"
)

type Algorithm int

const (
	MD5 Algorithm = iota
	SHA1
	SHA256
)

var algorithmFunc = map[Algorithm]func() hash.Hash{
	MD5:    md5.New,
	SHA1:   sha1.New,
	SHA256: sha256.New,
}

var ErrShortWrite = errors.New("short write")

// Checksums holds the hex encoded digests of a single file or stream.
// A digest that was not requested is left empty.
type Checksums struct {
	Md5    string
	Sha1   string
	Sha256 string
}

func GetFileChecksums(filePath string, checksumType ...Algorithm) (checksums Checksums, err error) {
	file, err := os.Open(filePath)
	if err != nil {
		return
	}
	defer func() {
		err = errors.Join(err, file.Close())
	}()
	return CalcChecksums(file, checksumType...)
}

// CalcChecksums reads the stream once, feeding every requested hash concurrently.
// With no algorithm given, all three digests are calculated.
func CalcChecksums(reader io.Reader, checksumType ...Algorithm) (Checksums, error) {
	if len(checksumType) == 0 {
		checksumType = []Algorithm{MD5, SHA1, SHA256}
	}
	hashes := make(map[Algorithm]hash.Hash, len(checksumType))
	writers := make([]io.Writer, 0, len(checksumType))
	for _, algorithm := range checksumType {
		if _, exists := hashes[algorithm]; exists {
			continue
		}
		h := algorithmFunc[algorithm]()
		hashes[algorithm] = h
		writers = append(writers, h)
	}
	sizedReader := bufio.NewReaderSize(reader, os.Getpagesize())
	if _, err := io.Copy(&parallelWriter{writers: writers}, sizedReader); err != nil {
		return Checksums{}, err
	}
	var result Checksums
	for algorithm, h := range hashes {
		sum := hex.EncodeToString(h.Sum(nil))
		switch algorithm {
		case MD5:
			result.Md5 = sum
		case SHA1:
			result.Sha1 = sum
		case SHA256:
			result.Sha256 = sum
		}
	}
	return result, nil
}

// CalcSha1 returns the hex sha1 digest of content.
func CalcSha1(content []byte) string {
	//#nosec G401 -- used as a content identifier, not for security.
	sum := sha1.Sum(content)
	return hex.EncodeToString(sum[:])
}

// parallelWriter duplicates each write to all writers and waits for every one of them.
type parallelWriter struct {
	writers []io.Writer
}

func (pw *parallelWriter) Write(p []byte) (int, error) {
	var wg sync.WaitGroup
	errs := make([]error, len(pw.writers))
	for i, w := range pw.writers {
		wg.Add(1)
		go func(i int, w io.Writer) {
			defer wg.Done()
			n, err := w.Write(p)
			if err == nil && n != len(p) {
				err = ErrShortWrite
			}
			errs[i] = err
		}(i, w)
	}
	wg.Wait()
	if err := errors.Join(errs...); err != nil {
		return 0, err
	}
	return len(p), nil
}
