/**
 * Incremental update writer
 *
 * Appends changed and new objects after the original file body, then a
 * cross-reference section pointing back at the previous one. The new
 * section matches the original file's flavor: classic table or xref
 * stream. Output is deterministic for identical input.
 */

package pdf

import (
	"bytes"
	"fmt"
	"sort"
	"strings"
)

// Updater accumulates object changes for an incremental update
type Updater struct {
	reader  *Reader
	objects map[int]Object
	nextNum int
}

// NewUpdater creates an updater over a parsed document
func NewUpdater(r *Reader) *Updater {
	return &Updater{
		reader:  r,
		objects: make(map[int]Object),
		nextNum: r.MaxObjectNumber() + 1,
	}
}

// AddObject registers a new indirect object and returns its reference
func (u *Updater) AddObject(obj Object) Ref {
	num := u.nextNum
	u.nextNum++
	u.objects[num] = obj
	return Ref{Num: num}
}

// SetObject replaces an existing indirect object
func (u *Updater) SetObject(num int, obj Object) {
	u.objects[num] = obj
}

// Dirty reports whether any object has been added or replaced
func (u *Updater) Dirty() bool {
	return len(u.objects) > 0
}

// Bytes serializes the incremental update. With no changes the original
// bytes are returned unchanged.
func (u *Updater) Bytes() ([]byte, error) {
	if len(u.objects) == 0 {
		return u.reader.data, nil
	}

	var buf bytes.Buffer
	buf.Write(u.reader.data)
	if buf.Len() > 0 && buf.Bytes()[buf.Len()-1] != '\n' {
		buf.WriteByte('\n')
	}

	nums := make([]int, 0, len(u.objects))
	for num := range u.objects {
		nums = append(nums, num)
	}
	sort.Ints(nums)

	offsets := make(map[int]int64, len(nums))
	for _, num := range nums {
		offsets[num] = int64(buf.Len())
		var sb strings.Builder
		fmt.Fprintf(&sb, "%d 0 obj\n", num)
		Serialize(&sb, u.objects[num])
		sb.WriteString("\nendobj\n")
		buf.WriteString(sb.String())
	}

	xrefOffset := int64(buf.Len())
	if u.reader.XrefIsStream() {
		if err := u.writeXrefStream(&buf, nums, offsets, xrefOffset); err != nil {
			return nil, err
		}
	} else {
		u.writeClassicXref(&buf, nums, offsets)
	}

	fmt.Fprintf(&buf, "startxref\n%d\n%%%%EOF\n", xrefOffset)
	return buf.Bytes(), nil
}

// newTrailer builds the update's trailer entries from the previous one
func (u *Updater) newTrailer() Dict {
	prev := u.reader.Trailer()
	trailer := Dict{
		"Size": Integer(u.nextNum),
		"Prev": Integer(u.reader.StartXref()),
	}
	for _, key := range []Name{"Root", "Info", "ID"} {
		if v, ok := prev[key]; ok {
			trailer[key] = v
		}
	}
	return trailer
}

func (u *Updater) writeClassicXref(buf *bytes.Buffer, nums []int, offsets map[int]int64) {
	buf.WriteString("xref\n")

	// Contiguous runs become subsections
	for i := 0; i < len(nums); {
		j := i
		for j+1 < len(nums) && nums[j+1] == nums[j]+1 {
			j++
		}
		fmt.Fprintf(buf, "%d %d\n", nums[i], j-i+1)
		for k := i; k <= j; k++ {
			fmt.Fprintf(buf, "%010d %05d n \n", offsets[nums[k]], 0)
		}
		i = j + 1
	}

	var sb strings.Builder
	Serialize(&sb, u.newTrailer())
	buf.WriteString("trailer\n")
	buf.WriteString(sb.String())
	buf.WriteByte('\n')
}

func (u *Updater) writeXrefStream(buf *bytes.Buffer, nums []int, offsets map[int]int64, xrefOffset int64) error {
	streamNum := u.nextNum
	u.nextNum++
	offsets[streamNum] = xrefOffset
	nums = append(nums, streamNum)

	// Entries: type 1, 4-byte offset, 2-byte generation
	var entries bytes.Buffer
	var index Array
	for i := 0; i < len(nums); {
		j := i
		for j+1 < len(nums) && nums[j+1] == nums[j]+1 {
			j++
		}
		index = append(index, Integer(nums[i]), Integer(j-i+1))
		for k := i; k <= j; k++ {
			off := offsets[nums[k]]
			entries.Write([]byte{
				entryInFile,
				byte(off >> 24), byte(off >> 16), byte(off >> 8), byte(off),
				0, 0,
			})
		}
		i = j + 1
	}

	data := flateEncode(entries.Bytes())

	dict := u.newTrailer()
	dict["Type"] = Name("XRef")
	dict["Size"] = Integer(u.nextNum)
	dict["W"] = Array{Integer(1), Integer(4), Integer(2)}
	dict["Index"] = index
	dict["Filter"] = Name("FlateDecode")
	dict["Length"] = Integer(len(data))

	var sb strings.Builder
	fmt.Fprintf(&sb, "%d 0 obj\n", streamNum)
	Serialize(&sb, &Stream{Dict: dict, Data: data})
	sb.WriteString("\nendobj\n")
	buf.WriteString(sb.String())
	return nil
}
