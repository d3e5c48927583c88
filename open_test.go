/* SPDX-License-Identifier: BSD-2-Clause */

package rangeseek

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/zip"

	"github.com/ricardobranco777/rangeseek/fetch/httpfetch"
)

func TestFile_SequentialReads(t *testing.T) {
	data := []byte("abcdefghijklmnopqrstuvwxyz")
	srv := serveBytesRange(data)
	defer srv.Close()

	r, err := Open(srv.URL, WithPrefetch(0))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	buf := make([]byte, 5)
	var total []byte

	for {
		n, err := r.Read(buf)
		total = append(total, buf[:n]...)
		if err == io.EOF {
			break
		}
		if err != nil {
			t.Fatalf("read failed: %v", err)
		}
	}

	if !bytes.Equal(total, data) {
		t.Fatalf("unexpected data: got %q want %q", total, data)
	}
	// Six reads of five bytes, each one a miss.
	if got := r.Stats(); got.NumRequests != 6 || got.LazyBytesRead != int64(len(data)) {
		t.Fatalf("unexpected stats %+v", got)
	}
}

func TestFile_SeekFromStart(t *testing.T) {
	data := []byte("0123456789abcdef")
	srv := serveBytesRange(data)
	defer srv.Close()

	r, err := Open(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	r.Seek(8, io.SeekStart)
	buf := make([]byte, 4)
	n, err := r.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatal(err)
	}

	want := data[8:12]
	if !bytes.Equal(buf[:n], want) {
		t.Fatalf("seek mismatch: got %q want %q", buf[:n], want)
	}
}

func TestFile_SeekCurrentAndBackwards(t *testing.T) {
	data := []byte("abcdefghijk")
	srv := serveBytesRange(data)
	defer srv.Close()

	r, err := Open(srv.URL, WithPrefetch(0))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	buf := make([]byte, 4)

	// Read first 4 bytes -> offset = 4
	r.Read(buf)

	// Seek backwards by 2 bytes -> offset = 2
	newOff, err := r.Seek(-2, io.SeekCurrent)
	if err != nil {
		t.Fatal(err)
	}
	if newOff != 2 {
		t.Fatalf("expected offset 2, got %d", newOff)
	}

	// Read next 4 bytes starting from offset 2 -> expect "cdef"
	n, err := r.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatal(err)
	}

	if got, want := string(buf[:n]), "cdef"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestFile_SeekFromEnd(t *testing.T) {
	data := []byte("abcdef")
	srv := serveBytesRange(data)
	defer srv.Close()

	r, err := Open(srv.URL, WithPrefetch(0))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	// Seek to 2 bytes before end
	off, err := r.Seek(-2, io.SeekEnd)
	if err != nil {
		t.Fatal(err)
	}
	if off != int64(len(data)-2) {
		t.Fatalf("expected offset %d, got %d", len(data)-2, off)
	}

	buf := make([]byte, 4)
	n, err := r.Read(buf)
	if err != nil && err != io.EOF {
		t.Fatal(err)
	}

	if got, want := string(buf[:n]), "ef"; got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

func TestFile_SeekInvalid(t *testing.T) {
	data := []byte("abc")
	srv := serveBytesRange(data)
	defer srv.Close()

	r, err := Open(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if _, err := r.Seek(-1, io.SeekStart); !errors.Is(err, ErrInvalidSeek) {
		t.Fatalf("expected ErrInvalidSeek for negative offset, got %v", err)
	}
	if _, err := r.Seek(0, 99); !errors.Is(err, ErrInvalidSeek) {
		t.Fatalf("expected ErrInvalidSeek for invalid whence, got %v", err)
	}
	if off, err := r.Seek(100, io.SeekStart); err != nil || off != 100 {
		t.Fatalf("seek past EOF: off=%d err=%v", off, err)
	}
}

func TestFile_ReadEOF(t *testing.T) {
	data := []byte("xyz")
	srv := serveBytesRange(data)
	defer srv.Close()

	r, err := Open(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	r.Seek(int64(len(data)), io.SeekStart)
	buf := make([]byte, 4)
	n, err := r.Read(buf)
	if n != 0 || err != io.EOF {
		t.Fatalf("expected EOF, got n=%d err=%v", n, err)
	}
}

func TestOpenSingleRequest(t *testing.T) {
	data := bytes.Repeat([]byte("0123456789"), 1000)
	var mu sync.Mutex
	var seen []string
	handler := rangeHandler(data)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		seen = append(seen, r.Method+" "+r.Header.Get("Range"))
		mu.Unlock()
		handler(w, r)
	}))
	defer srv.Close()

	f, err := Open(srv.URL, WithPrefetch(500))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 1 || seen[0] != "GET bytes=-500" {
		t.Fatalf("requests = %q, want one suffix GET", seen)
	}
	if size, err := f.Size(); err != nil || size != int64(len(data)) {
		t.Fatalf("Size() = %d, %v", size, err)
	}
	if f.URL() != srv.URL {
		t.Fatalf("URL() = %q", f.URL())
	}
}

func TestOpenNotFound(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	if _, err := Open(srv.URL); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestOpenRangeIgnored(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Accept-Ranges", "bytes")
		w.Header().Set("Content-Length", "10")
		if r.Method == http.MethodGet {
			w.Write([]byte("0123456789"))
		}
	}))
	defer srv.Close()

	r, err := Open(srv.URL, WithPrefetch(0))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if _, err := r.ReadAt(make([]byte, 4), 2); !errors.Is(err, ErrRangeUnsupported) {
		t.Fatalf("expected ErrRangeUnsupported, got %v", err)
	}
}

func TestOpenRejectsMisplacedTail(t *testing.T) {
	data := pattern(1000)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Answers any range with the first 100 bytes.
		w.Header().Set("Content-Range", fmt.Sprintf("bytes 0-99/%d", len(data)))
		w.WriteHeader(http.StatusPartialContent)
		w.Write(data[:100])
	}))
	defer srv.Close()

	if _, err := Open(srv.URL, WithPrefetch(100)); !errors.Is(err, ErrRangeUnsupported) {
		t.Fatalf("expected ErrRangeUnsupported, got %v", err)
	}
}

func TestOpenWithHTTPOptions(t *testing.T) {
	data := []byte("authorized content")
	handler := rangeHandler(data)
	var unauthorized atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer secret" {
			unauthorized.Add(1)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		handler(w, r)
	}))
	defer srv.Close()

	if _, err := Open(srv.URL); err == nil {
		t.Fatal("expected error without credentials")
	}

	r, err := Open(srv.URL, WithHTTPOptions(httpfetch.WithHeader("Authorization", "Bearer secret")))
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	all, err := io.ReadAll(r)
	if err != nil || !bytes.Equal(all, data) {
		t.Fatalf("ReadAll: %q, %v", all, err)
	}
	if unauthorized.Load() != 1 {
		t.Fatalf("unexpected unauthorized count %d", unauthorized.Load())
	}
}

// A zip archive keeps its directory at the end: listing it after the tail
// prefetch must not need more requests.
func TestZipDirectoryFromPrefetch(t *testing.T) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	body := pattern(300000)
	for i := range 5 {
		w, err := zw.CreateHeader(&zip.FileHeader{Name: fmt.Sprintf("dir/file%d.bin", i), Method: zip.Store})
		if err != nil {
			t.Fatal(err)
		}
		w.Write(body)
	}
	w, _ := zw.Create("README")
	io.WriteString(w, "hello from the end")
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	data := buf.Bytes()

	srv := serveBytesRange(data)
	defer srv.Close()

	f, err := Open(srv.URL)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	zr, err := zip.NewReader(f, int64(len(data)))
	if err != nil {
		t.Fatal(err)
	}
	if len(zr.File) != 6 {
		t.Fatalf("expected 6 entries, got %d", len(zr.File))
	}
	if st := f.Stats(); st.NumRequests != 1 || st.SatisfiedFromCache == 0 {
		t.Fatalf("directory not served from prefetch: %+v", st)
	}

	rc, err := zr.Open("README")
	if err != nil {
		t.Fatal(err)
	}
	defer rc.Close()
	got, err := io.ReadAll(rc)
	if err != nil || !strings.HasPrefix(string(got), "hello") {
		t.Fatalf("README = %q, %v", got, err)
	}
}
