package transform

import (
	"bufio"
	"bytes"
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"gitlab.com/tozd/go/errors"
	"golang.org/x/text/transform"
)

// ErrInputNotFound is returned when the input path does not exist.
var ErrInputNotFound = errors.Base("input not found")

// lenient drops ill-formed UTF-8 instead of failing the read.
func lenient() transform.Transformer {
	return dropIllFormed{}
}

// dropIllFormed copies valid UTF-8 and discards every byte that does not
// start a valid encoding. A correctly encoded U+FFFD is kept.
type dropIllFormed struct {
	transform.NopResetter
}

func (dropIllFormed) Transform(dst, src []byte, atEOF bool) (nDst, nSrc int, err error) {
	for nSrc < len(src) {
		c := src[nSrc]
		if c < utf8.RuneSelf {
			if nDst >= len(dst) {
				return nDst, nSrc, transform.ErrShortDst
			}
			dst[nDst] = c
			nDst++
			nSrc++
			continue
		}

		r, size := utf8.DecodeRune(src[nSrc:])
		if r == utf8.RuneError && size == 1 {
			if !atEOF && !utf8.FullRune(src[nSrc:]) {
				return nDst, nSrc, transform.ErrShortSrc
			}
			nSrc++
			continue
		}
		if nDst+size > len(dst) {
			return nDst, nSrc, transform.ErrShortDst
		}
		copy(dst[nDst:], src[nSrc:nSrc+size])
		nDst += size
		nSrc += size
	}
	return nDst, nSrc, nil
}

// LineReader yields lines without their terminator. Lines have no length limit.
type LineReader struct {
	f *os.File
	r *bufio.Reader
}

// OpenLines opens path for lenient line-by-line reading.
func OpenLines(path string) (*LineReader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WithStack(err)
	}
	return &LineReader{
		f: f,
		r: bufio.NewReaderSize(transform.NewReader(f, lenient()), 64*1024),
	}, nil
}

// Next returns the next line with any trailing "\n" or "\r\n" removed. The
// second result is false once the input is exhausted.
func (lr *LineReader) Next() (string, bool, error) {
	line, err := lr.r.ReadString('\n')
	if err != nil && err != io.EOF {
		return "", false, errors.WithStack(err)
	}
	if err == io.EOF && line == "" {
		return "", false, nil
	}
	line = strings.TrimSuffix(line, "\n")
	line = strings.TrimSuffix(line, "\r")
	return line, true, nil
}

func (lr *LineReader) Close() error {
	return lr.f.Close()
}

// CountLines returns the number of lines in path: every '\n' byte, plus one
// for a final line without a terminator. Bytes are counted undecoded.
func CountLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, errors.WithStack(err)
	}
	defer f.Close()

	buf := make([]byte, 64*1024)
	count := 0
	var last byte
	nonEmpty := false
	for {
		n, err := f.Read(buf)
		if n > 0 {
			count += bytes.Count(buf[:n], []byte{'\n'})
			last = buf[n-1]
			nonEmpty = true
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, errors.WithStack(err)
		}
	}
	if nonEmpty && last != '\n' {
		count++
	}
	return count, nil
}

// checkInput verifies path names an existing regular file.
func checkInput(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return errors.WithStack(err)
	}
	if !info.Mode().IsRegular() {
		return errors.Errorf("%s is not a regular file", path)
	}
	return nil
}

// checkDir verifies path names an existing directory.
func checkDir(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return errors.Errorf("%w: %s", ErrInputNotFound, path)
		}
		return errors.WithStack(err)
	}
	if !info.IsDir() {
		return errors.Errorf("%s is not a directory", path)
	}
	return nil
}
