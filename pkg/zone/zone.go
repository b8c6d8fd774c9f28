// Package zone turns raw zone files into the name lists a registry loads.
package zone

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/bastiangx/dotsearch/internal/utils"
	"github.com/charmbracelet/log"
	"github.com/klauspost/compress/gzip"
)

const progressEvery = 1_000_000

// maxLineBytes bounds a single zone record.
const maxLineBytes = 1 << 20

// DefaultOutputPath is the name FilterFile writes to when out is empty.
func DefaultOutputPath(in string) string {
	return in + ".filtered.txt.gz"
}

// Filter reads zone records from r and writes the second-level name of each,
// one per line, to w. Records for the same name are adjacent in a zone file,
// so only consecutive duplicates are dropped. It returns the number of names written.
func Filter(r io.Reader, w io.Writer) (int, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	bw := bufio.NewWriterSize(w, 64*1024)

	var (
		last    string
		written int
		lineNo  int
	)
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		idx := strings.IndexByte(line, '.')
		if idx <= 0 {
			log.Debugf("Skipping zone line %d without a name: %q", lineNo, line)
			continue
		}
		name := utils.Lower(line[:idx])
		if !utils.IsDomainLabel(name) {
			log.Debugf("Skipping zone line %d with invalid label %q", lineNo, name)
			continue
		}
		if name == last {
			continue
		}
		last = name

		if _, err := bw.WriteString(name); err != nil {
			return written, err
		}
		if err := bw.WriteByte('\n'); err != nil {
			return written, err
		}
		written++
		if written%progressEvery == 0 {
			log.Infof("Processed %d million names", written/progressEvery)
		}
	}
	if err := sc.Err(); err != nil {
		return written, fmt.Errorf("reading zone line %d: %w", lineNo+1, err)
	}
	return written, bw.Flush()
}

// FilterFile filters the zone file at in into a gzip file at out.
// The input may be gzip-compressed or plain. An empty out uses DefaultOutputPath.
func FilterFile(in, out string) (string, int, error) {
	if out == "" {
		out = DefaultOutputPath(in)
	}
	if !utils.FileExists(in) {
		return out, 0, fmt.Errorf("zone file not found: %s", in)
	}

	src, err := os.Open(in)
	if err != nil {
		return out, 0, err
	}
	defer src.Close()

	log.Debugf("Filtering %s into %s", in, out)
	n, err := filterToFile(src, out)
	return out, n, err
}

// filterToFile filters src, gzip or plain, into a new gzip file at out.
// A partly written out is removed on failure.
func filterToFile(src io.Reader, out string) (n int, err error) {
	r, closeIn, err := openMaybeGzip(src)
	if err != nil {
		return 0, fmt.Errorf("opening zone stream: %w", err)
	}
	defer closeIn()

	dst, err := os.Create(out)
	if err != nil {
		return 0, err
	}
	defer func() {
		if err != nil {
			_ = os.Remove(out)
		}
	}()
	zw := gzip.NewWriter(dst)

	start := time.Now()
	n, err = Filter(r, zw)
	if err != nil {
		_ = zw.Close()
		_ = dst.Close()
		return n, err
	}
	if err = zw.Close(); err != nil {
		_ = dst.Close()
		return n, fmt.Errorf("finishing gzip stream: %w", err)
	}
	if err = dst.Close(); err != nil {
		return n, err
	}
	log.Infof("Wrote %s names to %s in %v", utils.FormatWithCommas(n), out, time.Since(start).Round(time.Millisecond))
	return n, nil
}

func openMaybeGzip(f io.Reader) (io.Reader, func(), error) {
	br := bufio.NewReaderSize(f, 64*1024)
	magic, err := br.Peek(2)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, nil, err
	}
	if len(magic) == 2 && magic[0] == 0x1f && magic[1] == 0x8b {
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, err
		}
		return zr, func() { _ = zr.Close() }, nil
	}
	return br, func() {}, nil
}
