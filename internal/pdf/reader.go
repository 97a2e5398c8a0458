/**
 * PDF reader
 *
 * Loads a document's cross-reference data (classic tables and xref
 * streams, following /Prev chains), resolves indirect objects including
 * those packed in object streams, and walks the page tree with
 * attribute inheritance. Encrypted files are rejected.
 */

package pdf

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

const (
	entryFree       = 0
	entryInFile     = 1
	entryCompressed = 2
)

type xrefEntry struct {
	kind   int
	offset int64 // file offset (kind 1)
	stream int   // containing object stream number (kind 2)
	index  int   // index within the object stream (kind 2)
}

// Reader provides access to a parsed PDF document
type Reader struct {
	data         []byte
	entries      map[int]xrefEntry
	trailer      Dict
	startXref    int64
	xrefIsStream bool
	cache        map[int]Object
}

// PageInfo describes one page in document order
type PageInfo struct {
	Ref      Ref
	Dict     Dict
	MediaBox [4]float64
}

// NewReader parses the cross-reference data of a PDF held in memory
func NewReader(data []byte) (*Reader, error) {
	if !bytes.HasPrefix(data, []byte("%PDF-")) {
		return nil, fmt.Errorf("pdf: missing %%PDF header")
	}

	startXref, err := findStartXref(data)
	if err != nil {
		return nil, err
	}

	r := &Reader{
		data:      data,
		entries:   make(map[int]xrefEntry),
		startXref: startXref,
		cache:     make(map[int]Object),
	}

	if err := r.loadXrefChain(startXref); err != nil {
		return nil, err
	}
	if r.trailer == nil {
		return nil, fmt.Errorf("pdf: no trailer found")
	}
	if _, encrypted := r.trailer["Encrypt"]; encrypted {
		return nil, fmt.Errorf("pdf: encrypted files are not supported")
	}

	return r, nil
}

// findStartXref locates the startxref offset near the end of the file
func findStartXref(data []byte) (int64, error) {
	tail := data
	if len(tail) > 2048 {
		tail = tail[len(tail)-2048:]
	}

	idx := bytes.LastIndex(tail, []byte("startxref"))
	if idx < 0 {
		return 0, fmt.Errorf("pdf: startxref not found")
	}

	p := newParser(tail, idx+len("startxref"))
	p.skipWhitespace()
	obj, isInt, err := p.parseNumber()
	if err != nil || !isInt {
		return 0, fmt.Errorf("pdf: invalid startxref value")
	}

	offset := int64(obj.(Integer))
	if offset <= 0 || offset >= int64(len(data)) {
		return 0, fmt.Errorf("pdf: startxref offset %d out of range", offset)
	}
	return offset, nil
}

// loadXrefChain reads xref sections newest-first; the first entry seen
// for an object number wins.
func (r *Reader) loadXrefChain(offset int64) error {
	seen := map[int64]bool{}

	for offset > 0 {
		if seen[offset] {
			return fmt.Errorf("pdf: xref chain loop at offset %d", offset)
		}
		seen[offset] = true

		prev, err := r.loadXrefSection(offset)
		if err != nil {
			return err
		}
		offset = prev
	}
	return nil
}

// loadXrefSection parses one xref section and returns the /Prev offset
func (r *Reader) loadXrefSection(offset int64) (int64, error) {
	p := newParser(r.data, int(offset))
	p.skipWhitespace()

	if p.hasPrefix("xref") {
		return r.loadClassicXref(p)
	}
	return r.loadXrefStream(offset)
}

func (r *Reader) loadClassicXref(p *parser) (int64, error) {
	p.pos += len("xref")

	for {
		p.skipWhitespace()
		if p.hasPrefix("trailer") {
			p.pos += len("trailer")
			break
		}

		startObj, isInt, err := p.parseNumber()
		if err != nil || !isInt {
			return 0, fmt.Errorf("pdf: bad xref subsection header")
		}
		p.skipWhitespace()
		countObj, isInt, err := p.parseNumber()
		if err != nil || !isInt {
			return 0, fmt.Errorf("pdf: bad xref subsection count")
		}

		start := int(startObj.(Integer))
		count := int(countObj.(Integer))

		for i := 0; i < count; i++ {
			p.skipWhitespace()
			if p.pos+18 > len(p.data) {
				return 0, fmt.Errorf("pdf: truncated xref entry")
			}
			line := string(p.data[p.pos : p.pos+18])
			p.pos += 18

			entryOffset, err := strconv.ParseInt(strings.TrimSpace(line[0:10]), 10, 64)
			if err != nil {
				return 0, fmt.Errorf("pdf: bad xref offset %q", line)
			}
			kind := line[17]

			num := start + i
			if _, exists := r.entries[num]; exists {
				continue
			}
			if kind == 'n' {
				r.entries[num] = xrefEntry{kind: entryInFile, offset: entryOffset}
			} else {
				r.entries[num] = xrefEntry{kind: entryFree}
			}
		}
	}

	trailerObj, err := p.parseObject()
	if err != nil {
		return 0, fmt.Errorf("pdf: bad trailer: %w", err)
	}
	trailer, ok := trailerObj.(Dict)
	if !ok {
		return 0, fmt.Errorf("pdf: trailer is not a dictionary")
	}

	if r.trailer == nil {
		r.trailer = trailer
	}

	// Hybrid files point at an xref stream via /XRefStm
	if stm, ok := trailer.Int("XRefStm"); ok {
		if _, err := r.loadXrefStream(stm); err != nil {
			return 0, err
		}
	}

	prev, _ := trailer.Int("Prev")
	return prev, nil
}

func (r *Reader) loadXrefStream(offset int64) (int64, error) {
	_, obj, err := parseIndirectObject(r.data, int(offset))
	if err != nil {
		return 0, err
	}
	stream, ok := obj.(*Stream)
	if !ok {
		return 0, fmt.Errorf("pdf: xref section at %d is neither table nor stream", offset)
	}
	if t, _ := stream.Dict.NameValue("Type"); t != "XRef" {
		return 0, fmt.Errorf("pdf: expected /Type /XRef at offset %d", offset)
	}

	data, err := decodeStream(stream, r.resolveShallow)
	if err != nil {
		return 0, err
	}

	wObj, ok := stream.Dict["W"].(Array)
	if !ok || len(wObj) < 3 {
		return 0, fmt.Errorf("pdf: xref stream missing /W")
	}
	var w [3]int
	for i := 0; i < 3; i++ {
		v, ok := Float(wObj[i])
		if !ok {
			return 0, fmt.Errorf("pdf: bad /W entry")
		}
		w[i] = int(v)
	}
	entryLen := w[0] + w[1] + w[2]
	if entryLen <= 0 {
		return 0, fmt.Errorf("pdf: bad /W widths %v", w)
	}

	size, ok := stream.Dict.Int("Size")
	if !ok {
		return 0, fmt.Errorf("pdf: xref stream missing /Size")
	}

	var index []int
	if idxObj, ok := stream.Dict["Index"].(Array); ok {
		for _, v := range idxObj {
			f, ok := Float(v)
			if !ok {
				return 0, fmt.Errorf("pdf: bad /Index entry")
			}
			index = append(index, int(f))
		}
	} else {
		index = []int{0, int(size)}
	}

	pos := 0
	for i := 0; i+1 < len(index); i += 2 {
		start, count := index[i], index[i+1]
		for j := 0; j < count; j++ {
			if pos+entryLen > len(data) {
				return 0, fmt.Errorf("pdf: truncated xref stream")
			}

			f1 := readBE(data[pos : pos+w[0]])
			f2 := readBE(data[pos+w[0] : pos+w[0]+w[1]])
			f3 := readBE(data[pos+w[0]+w[1] : pos+entryLen])
			pos += entryLen

			if w[0] == 0 {
				f1 = entryInFile // default type
			}

			num := start + j
			if _, exists := r.entries[num]; exists {
				continue
			}

			switch f1 {
			case entryFree:
				r.entries[num] = xrefEntry{kind: entryFree}
			case entryInFile:
				r.entries[num] = xrefEntry{kind: entryInFile, offset: f2}
			case entryCompressed:
				r.entries[num] = xrefEntry{kind: entryCompressed, stream: int(f2), index: int(f3)}
			}
		}
	}

	if r.trailer == nil {
		r.trailer = stream.Dict
		r.xrefIsStream = true
	}

	prev, _ := stream.Dict.Int("Prev")
	return prev, nil
}

func readBE(b []byte) int64 {
	var v int64
	for _, c := range b {
		v = v<<8 | int64(c)
	}
	return v
}

// resolveShallow resolves references for stream metadata during xref
// loading, where only in-file objects can exist
func (r *Reader) resolveShallow(obj Object) (Object, error) {
	ref, ok := obj.(Ref)
	if !ok {
		return obj, nil
	}
	entry, ok := r.entries[ref.Num]
	if !ok || entry.kind != entryInFile {
		return Null{}, nil
	}
	_, value, err := parseIndirectObject(r.data, int(entry.offset))
	return value, err
}

// Trailer returns the document trailer dictionary
func (r *Reader) Trailer() Dict {
	return r.trailer
}

// StartXref returns the offset of the newest xref section
func (r *Reader) StartXref() int64 {
	return r.startXref
}

// XrefIsStream reports whether the newest xref section is an xref stream
func (r *Reader) XrefIsStream() bool {
	return r.xrefIsStream
}

// MaxObjectNumber returns the highest known object number
func (r *Reader) MaxObjectNumber() int {
	max := 0
	for num := range r.entries {
		if num > max {
			max = num
		}
	}
	return max
}

// Object loads the indirect object with the given number
func (r *Reader) Object(num int) (Object, error) {
	if cached, ok := r.cache[num]; ok {
		return cached, nil
	}

	entry, ok := r.entries[num]
	if !ok || entry.kind == entryFree {
		return Null{}, nil
	}

	var obj Object
	var err error
	switch entry.kind {
	case entryInFile:
		var gotNum int
		gotNum, obj, err = parseIndirectObject(r.data, int(entry.offset))
		if err != nil {
			return nil, err
		}
		if gotNum != num {
			return nil, fmt.Errorf("pdf: object %d found at offset of object %d", gotNum, num)
		}
	case entryCompressed:
		obj, err = r.objectFromStream(entry.stream, entry.index)
		if err != nil {
			return nil, err
		}
	}

	r.cache[num] = obj
	return obj, nil
}

// objectFromStream extracts the idx-th object from an object stream
func (r *Reader) objectFromStream(streamNum, idx int) (Object, error) {
	container, err := r.Object(streamNum)
	if err != nil {
		return nil, err
	}
	stream, ok := container.(*Stream)
	if !ok {
		return nil, fmt.Errorf("pdf: object stream %d is not a stream", streamNum)
	}

	data, err := decodeStream(stream, r.Resolve)
	if err != nil {
		return nil, err
	}

	n, ok := stream.Dict.Int("N")
	if !ok || idx >= int(n) {
		return nil, fmt.Errorf("pdf: object index %d out of range in stream %d", idx, streamNum)
	}
	first, ok := stream.Dict.Int("First")
	if !ok {
		return nil, fmt.Errorf("pdf: object stream %d missing /First", streamNum)
	}

	// Header: N pairs of (object number, relative offset)
	p := newParser(data, 0)
	var relOffset int64 = -1
	for i := 0; i < int(n); i++ {
		p.skipWhitespace()
		if _, _, err := p.parseNumber(); err != nil {
			return nil, fmt.Errorf("pdf: bad object stream header: %w", err)
		}
		p.skipWhitespace()
		offObj, isInt, err := p.parseNumber()
		if err != nil || !isInt {
			return nil, fmt.Errorf("pdf: bad object stream header")
		}
		if i == idx {
			relOffset = int64(offObj.(Integer))
		}
	}
	if relOffset < 0 {
		return nil, fmt.Errorf("pdf: object index %d not found in stream %d", idx, streamNum)
	}

	op := newParser(data, int(first+relOffset))
	return op.parseObject()
}

// Resolve dereferences obj if it is an indirect reference
func (r *Reader) Resolve(obj Object) (Object, error) {
	for i := 0; i < 32; i++ {
		ref, ok := obj.(Ref)
		if !ok {
			return obj, nil
		}
		next, err := r.Object(ref.Num)
		if err != nil {
			return nil, err
		}
		obj = next
	}
	return nil, fmt.Errorf("pdf: reference chain too deep")
}

// ResolveDict resolves obj and asserts it is a dictionary
func (r *Reader) ResolveDict(obj Object) (Dict, error) {
	resolved, err := r.Resolve(obj)
	if err != nil {
		return nil, err
	}
	dict, ok := resolved.(Dict)
	if !ok {
		return nil, fmt.Errorf("pdf: expected dictionary, got %T", resolved)
	}
	return dict, nil
}

// Pages returns all pages in document order with inherited attributes
func (r *Reader) Pages() ([]PageInfo, error) {
	root, err := r.ResolveDict(r.trailer["Root"])
	if err != nil {
		return nil, fmt.Errorf("pdf: bad /Root: %w", err)
	}

	pagesRef, ok := root["Pages"].(Ref)
	if !ok {
		return nil, fmt.Errorf("pdf: catalog missing /Pages reference")
	}

	var pages []PageInfo
	var walk func(ref Ref, inheritedBox Array, depth int) error
	walk = func(ref Ref, inheritedBox Array, depth int) error {
		if depth > 64 {
			return fmt.Errorf("pdf: page tree too deep")
		}

		node, err := r.ResolveDict(ref)
		if err != nil {
			return err
		}

		if boxObj, err := r.Resolve(node["MediaBox"]); err == nil {
			if box, ok := boxObj.(Array); ok && len(box) == 4 {
				inheritedBox = box
			}
		}

		nodeType, _ := node.NameValue("Type")
		if nodeType == "Page" {
			var box [4]float64
			if len(inheritedBox) != 4 {
				return fmt.Errorf("pdf: page %d has no MediaBox", ref.Num)
			}
			for i := 0; i < 4; i++ {
				v, err := r.Resolve(inheritedBox[i])
				if err != nil {
					return err
				}
				f, ok := Float(v)
				if !ok {
					return fmt.Errorf("pdf: bad MediaBox entry %v", v)
				}
				box[i] = f
			}
			pages = append(pages, PageInfo{Ref: ref, Dict: node, MediaBox: box})
			return nil
		}

		kidsObj, err := r.Resolve(node["Kids"])
		if err != nil {
			return err
		}
		kids, ok := kidsObj.(Array)
		if !ok {
			return fmt.Errorf("pdf: /Kids is not an array in node %d", ref.Num)
		}
		for _, kid := range kids {
			kidRef, ok := kid.(Ref)
			if !ok {
				return fmt.Errorf("pdf: page tree kid is not a reference")
			}
			if err := walk(kidRef, inheritedBox, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := walk(pagesRef, nil, 0); err != nil {
		return nil, err
	}
	return pages, nil
}
