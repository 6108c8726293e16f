package asaph

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/klauspost/pgzip"
)

// zopen returns a reader for the given file, transparently
// decompressing the input if fnm ends with ".gz".
func zopen(fnm string) (io.ReadCloser, error) {
	f, err := os.Open(fnm)
	if err != nil || !strings.HasSuffix(fnm, ".gz") {
		return f, err
	}
	rdr, err := pgzip.NewReader(bufio.NewReaderSize(f, 4*1024*1024))
	if err != nil {
		f.Close()
		return nil, err
	}
	return gzipr{rdr, f}, nil
}

// gzipr wraps a ReadCloser and a Closer, presenting a single Close()
// method that closes both wrapped objects.
type gzipr struct {
	io.ReadCloser
	io.Closer
}

func (gr gzipr) Close() error {
	e1 := gr.ReadCloser.Close()
	e2 := gr.Closer.Close()
	if e1 != nil {
		return e1
	}
	return e2
}

type nopCloser struct {
	io.Writer
}

func (nopCloser) Close() error { return nil }

// allFiles returns the paths of the regular files under path (itself,
// if path is a file, otherwise the entries of the directory) whose
// names match re. Directory entries are returned in sorted order.
func allFiles(path string, re *regexp.Regexp) ([]string, error) {
	var files []string
	fi, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("%s: stat failed: %w", path, err)
	}
	if !fi.IsDir() {
		return []string{path}, nil
	}
	d, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%s: open failed: %w", path, err)
	}
	defer d.Close()
	names, err := d.Readdirnames(0)
	if err != nil {
		return nil, fmt.Errorf("%s: readdir failed: %w", path, err)
	}
	sort.Strings(names)
	for _, name := range names {
		if re == nil || re.MatchString(name) {
			files = append(files, filepath.Join(path, name))
		}
	}
	return files, nil
}
