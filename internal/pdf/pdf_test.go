/**
 * PDF reader and incremental-update writer tests
 *
 * Fixtures are built programmatically so xref offsets are always exact:
 * - classic xref table documents
 * - xref stream documents (FlateDecode)
 * - incremental updates over both flavors
 */

package pdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"strings"
	"testing"
)

// buildClassicPDF returns a one-page document with a classic xref table.
// The page inherits its MediaBox from the page tree root.
func buildClassicPDF() []byte {
	var buf bytes.Buffer
	buf.WriteString("%PDF-1.4\n")

	offsets := map[int]int{}
	writeObj := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	writeObj(1, "<</Type /Catalog /Pages 2 0 R>>")
	writeObj(2, "<</Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 612 792]>>")
	writeObj(3, "<</Type /Page /Parent 2 0 R /Contents 4 0 R>>")
	writeObj(4, "<</Length 3>>\nstream\nq Q\nendstream")

	xref := buf.Len()
	buf.WriteString("xref\n0 5\n0000000000 65535 f \n")
	for num := 1; num <= 4; num++ {
		fmt.Fprintf(&buf, "%010d 00000 n \n", offsets[num])
	}
	buf.WriteString("trailer\n<</Size 5 /Root 1 0 R>>\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xref)
	return buf.Bytes()
}

// buildXrefStreamPDF returns the same one-page document with its xref
// recorded in a FlateDecode xref stream.
func buildXrefStreamPDF(t *testing.T) []byte {
	t.Helper()

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.5\n")

	offsets := map[int]int{}
	writeObj := func(num int, body string) {
		offsets[num] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n%s\nendobj\n", num, body)
	}

	writeObj(1, "<</Type /Catalog /Pages 2 0 R>>")
	writeObj(2, "<</Type /Pages /Kids [3 0 R] /Count 1 /MediaBox [0 0 612 792]>>")
	writeObj(3, "<</Type /Page /Parent 2 0 R>>")

	xref := buf.Len()
	offsets[4] = xref

	// W [1 4 2]: type, offset, generation
	var entries bytes.Buffer
	entries.Write([]byte{0, 0, 0, 0, 0, 0xFF, 0xFF})
	for num := 1; num <= 4; num++ {
		off := offsets[num]
		entries.Write([]byte{1, byte(off >> 24), byte(off >> 16), byte(off >> 8), byte(off), 0, 0})
	}

	var compressed bytes.Buffer
	zw := zlib.NewWriter(&compressed)
	if _, err := zw.Write(entries.Bytes()); err != nil {
		t.Fatalf("compress xref entries: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close compressor: %v", err)
	}

	fmt.Fprintf(&buf, "4 0 obj\n<</Type /XRef /Size 5 /Root 1 0 R /W [1 4 2] /Filter /FlateDecode /Length %d>>\nstream\n",
		compressed.Len())
	buf.Write(compressed.Bytes())
	buf.WriteString("\nendstream\nendobj\n")
	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xref)
	return buf.Bytes()
}

func TestReaderClassicXref(t *testing.T) {
	reader, err := NewReader(buildClassicPDF())
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	if reader.XrefIsStream() {
		t.Error("classic table reported as xref stream")
	}
	if got := reader.MaxObjectNumber(); got != 4 {
		t.Errorf("MaxObjectNumber = %d, want 4", got)
	}

	pages, err := reader.Pages()
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(pages))
	}
	if pages[0].MediaBox != [4]float64{0, 0, 612, 792} {
		t.Errorf("MediaBox = %v, want [0 0 612 792]", pages[0].MediaBox)
	}
	if pages[0].Ref.Num != 3 {
		t.Errorf("page ref = %d, want 3", pages[0].Ref.Num)
	}

	contentsObj, err := reader.Resolve(pages[0].Dict["Contents"])
	if err != nil {
		t.Fatalf("resolve contents: %v", err)
	}
	stream, ok := contentsObj.(*Stream)
	if !ok {
		t.Fatalf("contents is %T, want *Stream", contentsObj)
	}
	if string(stream.Data) != "q Q" {
		t.Errorf("content stream = %q, want %q", stream.Data, "q Q")
	}
}

func TestReaderXrefStream(t *testing.T) {
	reader, err := NewReader(buildXrefStreamPDF(t))
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	if !reader.XrefIsStream() {
		t.Error("xref stream reported as classic table")
	}

	pages, err := reader.Pages()
	if err != nil {
		t.Fatalf("Pages: %v", err)
	}
	if len(pages) != 1 {
		t.Fatalf("got %d pages, want 1", len(pages))
	}
	if pages[0].MediaBox != [4]float64{0, 0, 612, 792} {
		t.Errorf("MediaBox = %v", pages[0].MediaBox)
	}
}

func TestReaderRejectsNonPDF(t *testing.T) {
	if _, err := NewReader([]byte("not a pdf at all")); err == nil {
		t.Error("expected error for non-PDF input")
	}
}

func TestReaderRejectsEncrypted(t *testing.T) {
	data := buildClassicPDF()
	data = bytes.Replace(data,
		[]byte("<</Size 5 /Root 1 0 R>>"),
		[]byte("<</Size 5 /Root 1 0 R /Encrypt 9 0 R>>"), 1)

	_, err := NewReader(data)
	if err == nil {
		t.Fatal("expected error for encrypted file")
	}
	if !strings.Contains(err.Error(), "encrypted") {
		t.Errorf("error = %v, want mention of encryption", err)
	}
}

func TestUpdaterNoChanges(t *testing.T) {
	original := buildClassicPDF()
	reader, err := NewReader(original)
	if err != nil {
		t.Fatalf("NewReader: %v", err)
	}

	out, err := NewUpdater(reader).Bytes()
	if err != nil {
		t.Fatalf("Bytes: %v", err)
	}
	if !bytes.Equal(out, original) {
		t.Error("output differs from input with no changes")
	}
}

func TestUpdaterIncrementalUpdate(t *testing.T) {
	fixtures := []struct {
		name  string
		build func() []byte
	}{
		{name: "classic xref", build: buildClassicPDF},
		{name: "xref stream", build: func() []byte { return buildXrefStreamPDF(t) }},
	}

	for _, fixture := range fixtures {
		t.Run(fixture.name, func(t *testing.T) {
			original := fixture.build()
			reader, err := NewReader(original)
			if err != nil {
				t.Fatalf("NewReader: %v", err)
			}
			pages, err := reader.Pages()
			if err != nil {
				t.Fatalf("Pages: %v", err)
			}

			updater := NewUpdater(reader)
			annotRef := updater.AddObject(Dict{
				"Type":    Name("Annot"),
				"Subtype": Name("Square"),
				"Rect":    Array{Integer(10), Integer(10), Integer(100), Integer(50)},
			})

			pageDict := Dict{}
			for k, v := range pages[0].Dict {
				pageDict[k] = v
			}
			pageDict["Annots"] = Array{annotRef}
			updater.SetObject(pages[0].Ref.Num, pageDict)

			out, err := updater.Bytes()
			if err != nil {
				t.Fatalf("Bytes: %v", err)
			}
			if !bytes.HasPrefix(out, original) {
				t.Error("update does not preserve original bytes as prefix")
			}

			// The updated file must parse and expose the new annotation
			updated, err := NewReader(out)
			if err != nil {
				t.Fatalf("NewReader(updated): %v", err)
			}
			if prev, ok := updated.Trailer().Int("Prev"); !ok || prev != reader.StartXref() {
				t.Errorf("trailer /Prev = %d, want %d", prev, reader.StartXref())
			}

			updatedPages, err := updated.Pages()
			if err != nil {
				t.Fatalf("Pages(updated): %v", err)
			}
			if len(updatedPages) != 1 {
				t.Fatalf("got %d pages after update, want 1", len(updatedPages))
			}

			annots, ok := updatedPages[0].Dict["Annots"].(Array)
			if !ok || len(annots) != 1 {
				t.Fatalf("updated page /Annots = %v", updatedPages[0].Dict["Annots"])
			}
			annot, err := updated.ResolveDict(annots[0])
			if err != nil {
				t.Fatalf("resolve annotation: %v", err)
			}
			if subtype, _ := annot.NameValue("Subtype"); subtype != "Square" {
				t.Errorf("annotation subtype = %s, want Square", subtype)
			}
		})
	}
}

func TestSerializeParseRoundTrip(t *testing.T) {
	original := Dict{
		"Name":   Name("With space"),
		"Int":    Integer(-42),
		"Real":   Real(3.5),
		"Bool":   Bool(true),
		"Null":   Null{},
		"Str":    String("hello (world)"),
		"Ref":    Ref{Num: 7, Gen: 0},
		"Arr":    Array{Integer(1), Name("two"), Array{Integer(3)}},
		"Nested": Dict{"K": Integer(9)},
	}

	var sb strings.Builder
	Serialize(&sb, original)

	p := newParser([]byte(sb.String()), 0)
	parsedObj, err := p.parseObject()
	if err != nil {
		t.Fatalf("parse serialized dict: %v", err)
	}
	parsed, ok := parsedObj.(Dict)
	if !ok {
		t.Fatalf("parsed %T, want Dict", parsedObj)
	}

	if v, _ := parsed.Int("Int"); v != -42 {
		t.Errorf("Int = %d", v)
	}
	if v, ok := Float(parsed["Real"]); !ok || v != 3.5 {
		t.Errorf("Real = %v", parsed["Real"])
	}
	if v, _ := parsed.NameValue("Name"); v != "With space" {
		t.Errorf("Name = %q", v)
	}
	if v, ok := parsed["Str"].(String); !ok || string(v) != "hello (world)" {
		t.Errorf("Str = %q", v)
	}
	if v, ok := parsed["Ref"].(Ref); !ok || v.Num != 7 {
		t.Errorf("Ref = %v", parsed["Ref"])
	}
	arr, ok := parsed["Arr"].(Array)
	if !ok || len(arr) != 3 {
		t.Fatalf("Arr = %v", parsed["Arr"])
	}
	nested, ok := parsed["Nested"].(Dict)
	if !ok {
		t.Fatalf("Nested = %v", parsed["Nested"])
	}
	if v, _ := nested.Int("K"); v != 9 {
		t.Errorf("Nested.K = %d", v)
	}
}

func TestDecodeStreamFlate(t *testing.T) {
	payload := []byte("decoded stream payload")
	encoded := flateEncode(payload)

	stream := &Stream{
		Dict: Dict{"Filter": Name("FlateDecode"), "Length": Integer(len(encoded))},
		Data: encoded,
	}
	decoded, err := decodeStream(stream, func(o Object) (Object, error) { return o, nil })
	if err != nil {
		t.Fatalf("decodeStream: %v", err)
	}
	if !bytes.Equal(decoded, payload) {
		t.Errorf("decoded = %q, want %q", decoded, payload)
	}
}

func TestPNGPredictorUp(t *testing.T) {
	// Two rows of 3 bytes, filter 2 (Up) on each row
	data := []byte{
		2, 10, 20, 30,
		2, 1, 2, 3,
	}
	decoded, err := applyPNGPredictor(data, 3, 1, 8)
	if err != nil {
		t.Fatalf("applyPNGPredictor: %v", err)
	}
	want := []byte{10, 20, 30, 11, 22, 33}
	if !bytes.Equal(decoded, want) {
		t.Errorf("decoded = %v, want %v", decoded, want)
	}
}
