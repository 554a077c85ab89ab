// Package rangedzip provides an io.ReadSeeker over a remote release
// archive, fetching only the byte ranges actually read rather than the
// whole file, backed by a small LRU cache of fixed-size regions.
package rangedzip

import (
	"context"
	"fmt"
	"io"
	"sync"

	lru "github.com/hashicorp/golang-lru/v2"
)

// RegionLenMax is the largest number of bytes held in a single cached
// region. It must be larger than any single Read call the ZIP scanner
// issues, so a read never spans more than two regions.
const RegionLenMax = 8 * 1024

// Fetcher opens an HTTP range request starting at the given byte offset
// and running to the end of the file (a Range header of the form
// "bytes=N-"), returning a body the reader can pull bytes from
// sequentially. registry.Client.ReleaseFetcher returns one bound to a
// release.
type Fetcher interface {
	Fetch(ctx context.Context, rangeHeader string) (io.ReadCloser, error)
}

// FetcherFunc adapts a function to a Fetcher.
type FetcherFunc func(ctx context.Context, rangeHeader string) (io.ReadCloser, error)

func (f FetcherFunc) Fetch(ctx context.Context, rangeHeader string) (io.ReadCloser, error) {
	return f(ctx, rangeHeader)
}

// slot holds one region's worth of bytes once its download completes.
// done is closed exactly once, by whichever goroutine finishes reading
// the region's bytes off the wire.
type slot struct {
	done chan struct{}
	data []byte
	err  error
}

// openStream is an in-flight HTTP response body positioned to serve the
// next sequential region without a new request, the same "reuse the
// reader" trick the original implementation performs.
type openStream struct {
	body io.ReadCloser
}

// Reader implements io.ReadSeeker over a release's remote zip, backed
// by at most three concurrently-held regions (the cache slot the
// current read starts in, the one it may spill into, and one more held
// open to serve the next read without a fresh HTTP request).
type Reader struct {
	ctx     context.Context
	fetcher Fetcher
	length  uint64

	mu      sync.Mutex
	pos     uint64
	cache   *lru.Cache[uint64, *slot]
	streams map[uint64]*openStream // keyed by the region each stream can serve next
}

// NewReader constructs a Reader of the given total length. length is
// normally obtained via Client.GetFileSize before the Reader is built.
func NewReader(ctx context.Context, fetcher Fetcher, length uint64) (*Reader, error) {
	cache, err := lru.New[uint64, *slot](3)
	if err != nil {
		return nil, fmt.Errorf("constructing region cache: %w", err)
	}

	return &Reader{
		ctx:     ctx,
		fetcher: fetcher,
		length:  length,
		cache:   cache,
		streams: make(map[uint64]*openStream),
	}, nil
}

// Len reports the total size of the underlying file.
func (r *Reader) Len() uint64 { return r.length }

func regionLen(key, length uint64) int {
	start := key * RegionLenMax
	end := min((key+1)*RegionLenMax, length)
	return int(end - start)
}

// Read implements io.Reader. A single call never spans more than one
// region boundary's worth of opportunistic prefetch; it blocks until
// that region's bytes have arrived.
func (r *Reader) Read(p []byte) (int, error) {
	r.mu.Lock()
	if r.pos >= r.length {
		r.mu.Unlock()
		return 0, io.EOF
	}
	key := r.pos / RegionLenMax
	offset := r.pos % RegionLenMax
	s := r.getOrStartLocked(key)
	r.mu.Unlock()

	<-s.done
	if s.err != nil {
		return 0, s.err
	}

	n := copy(p, s.data[offset:])
	r.mu.Lock()
	r.pos += uint64(n)
	r.mu.Unlock()
	return n, nil
}

// getOrStartLocked returns the slot for key, starting its download if
// necessary. r.mu must be held on entry; it is not released here.
func (r *Reader) getOrStartLocked(key uint64) *slot {
	if s, ok := r.cache.Get(key); ok {
		return s
	}

	s := &slot{done: make(chan struct{})}
	r.cache.Add(key, s)

	if stream, ok := r.streams[key]; ok {
		delete(r.streams, key)
		go r.fill(stream, key, s)
		return s
	}

	go r.startFresh(key, s)
	return s
}

// startFresh issues a brand-new ranged HTTP request beginning at key's
// region and reads that region's bytes from it.
func (r *Reader) startFresh(key uint64, s *slot) {
	body, err := r.fetcher.Fetch(r.ctx, fmt.Sprintf("bytes=%d-", key*RegionLenMax))
	if err != nil {
		s.err = err
		close(s.done)
		return
	}
	r.fill(&openStream{body: body}, key, s)
}

// fill reads exactly regionLen(key) bytes from stream into s, then
// either stashes the stream to serve region key+1 without a new
// request (if nothing is already fetching or caching it) or closes it.
func (r *Reader) fill(stream *openStream, key uint64, s *slot) {
	n := regionLen(key, r.length)
	buf := make([]byte, n)
	_, err := io.ReadFull(stream.body, buf)

	s.data = buf
	s.err = err
	close(s.done)

	if err != nil {
		_ = stream.body.Close()
		return
	}

	nextKey := key + 1
	if nextKey*RegionLenMax >= r.length {
		_ = stream.body.Close()
		return
	}

	r.mu.Lock()
	_, cached := r.cache.Get(nextKey)
	_, streaming := r.streams[nextKey]
	if !cached && !streaming {
		r.streams[nextKey] = stream
		r.mu.Unlock()
		return
	}
	r.mu.Unlock()
	_ = stream.body.Close()
}

// Seek implements io.Seeker.
func (r *Reader) Seek(offset int64, whence int) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var base int64
	switch whence {
	case io.SeekStart:
		base = 0
	case io.SeekEnd:
		base = int64(r.length)
	case io.SeekCurrent:
		base = int64(r.pos)
	default:
		return 0, fmt.Errorf("rangedzip: invalid whence %d", whence)
	}

	newPos := base + offset
	if newPos < 0 {
		return 0, fmt.Errorf("rangedzip: invalid seek to a negative position")
	}

	r.pos = uint64(newPos)
	return newPos, nil
}
