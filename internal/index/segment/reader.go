package segment

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"hash/crc32"
	"os"
	"path/filepath"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/search-ltr/internal/index"
)

// Reader serves a segment file. The dictionary and document block are held
// in memory; postings are read from disk on demand. Reader implements
// index.Segment and is safe for concurrent use.
type Reader struct {
	file     *os.File
	name     string
	header   Header
	dict     []DictEntry
	docs     docsBlock
	postBase int64
}

var _ index.Segment = (*Reader)(nil)

func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening segment file: %w", err)
	}
	r, err := load(f, filepath.Base(path))
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("loading segment %s: %w", path, err)
	}
	return r, nil
}

func load(f *os.File, name string) (*Reader, error) {
	headerBytes := make([]byte, HeaderSize)
	if _, err := f.ReadAt(headerBytes, 0); err != nil {
		return nil, fmt.Errorf("reading header: %w", err)
	}
	header := decodeHeader(headerBytes)
	if header.Magic != MagicBytes {
		return nil, fmt.Errorf("invalid segment file: bad magic bytes %x", header.Magic)
	}
	if header.Version != FormatVersion {
		return nil, fmt.Errorf("unsupported segment version %d", header.Version)
	}

	dictBytes := make([]byte, header.DictSize)
	if _, err := f.ReadAt(dictBytes, header.DictOffset); err != nil {
		return nil, fmt.Errorf("reading dictionary: %w", err)
	}
	docsBytes := make([]byte, header.DocsSize)
	if _, err := f.ReadAt(docsBytes, header.DocsOffset); err != nil {
		return nil, fmt.Errorf("reading document block: %w", err)
	}
	footer := make([]byte, FooterSize)
	if _, err := f.ReadAt(footer, header.DocsOffset+header.DocsSize); err != nil {
		return nil, fmt.Errorf("reading footer: %w", err)
	}
	if crc32.ChecksumIEEE(dictBytes) != binary.LittleEndian.Uint32(footer[0:4]) ||
		crc32.ChecksumIEEE(docsBytes) != binary.LittleEndian.Uint32(footer[4:8]) {
		return nil, fmt.Errorf("segment checksum mismatch")
	}

	r := &Reader{file: f, name: name, header: header, postBase: header.PostOffset}
	if err := json.Unmarshal(dictBytes, &r.dict); err != nil {
		return nil, fmt.Errorf("parsing dictionary: %w", err)
	}
	if err := json.Unmarshal(docsBytes, &r.docs); err != nil {
		return nil, fmt.Errorf("parsing document block: %w", err)
	}
	return r, nil
}

func (r *Reader) lookup(t index.Term) (DictEntry, bool) {
	idx := sort.Search(len(r.dict), func(i int) bool {
		e := r.dict[i]
		return !(index.Term{Field: e.Field, Text: e.Term}).Less(t)
	})
	if idx >= len(r.dict) || r.dict[idx].Field != t.Field || r.dict[idx].Term != t.Text {
		return DictEntry{}, false
	}
	return r.dict[idx], true
}

func (r *Reader) Name() string { return r.name }

func (r *Reader) MaxDoc() int { return len(r.docs.IDs) }

func (r *Reader) DocID(doc int) string { return r.docs.IDs[doc] }

// Postings reads and decodes the postings of t from disk.
func (r *Reader) Postings(t index.Term) (index.PostingList, error) {
	entry, ok := r.lookup(t)
	if !ok {
		return nil, nil
	}
	postingsBytes := make([]byte, entry.PostLen)
	if _, err := r.file.ReadAt(postingsBytes, r.postBase+entry.PostOffset); err != nil {
		return nil, fmt.Errorf("reading postings for %s: %w", t, err)
	}
	var postings index.PostingList
	if err := json.Unmarshal(postingsBytes, &postings); err != nil {
		return nil, fmt.Errorf("parsing postings for %s: %w", t, err)
	}
	return postings, nil
}

func (r *Reader) TermStats(t index.Term) index.TermStats {
	entry, ok := r.lookup(t)
	if !ok {
		return index.TermStats{}
	}
	return index.TermStats{DocFreq: entry.DocFreq, TotalTermFreq: entry.TotalTermFreq}
}

func (r *Reader) FieldStats(field string) index.FieldStats {
	fb, ok := r.docs.Fields[field]
	if !ok {
		return index.FieldStats{}
	}
	return index.FieldStats{DocCount: fb.DocCount, SumTotalTermFreq: fb.SumTotalTermFreq}
}

func (r *Reader) FieldLength(field string, doc int) int {
	fb, ok := r.docs.Fields[field]
	if !ok || doc >= len(fb.Lengths) {
		return 0
	}
	return int(fb.Lengths[doc])
}

// TermCount is the number of distinct field/term pairs in the segment.
func (r *Reader) TermCount() int {
	return int(r.header.TermCount)
}

func (r *Reader) Close() error {
	return r.file.Close()
}
