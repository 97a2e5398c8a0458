/**
 * Stream filters
 *
 * FlateDecode with PNG predictor support, enough for xref streams and
 * object streams produced by mainstream writers.
 */

package pdf

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// decodeStream decodes a stream's data according to its /Filter entry.
// Unfiltered streams are returned as-is; only FlateDecode is supported.
func decodeStream(s *Stream, resolve func(Object) (Object, error)) ([]byte, error) {
	filter, err := resolve(s.Dict["Filter"])
	if err != nil {
		return nil, err
	}

	switch f := filter.(type) {
	case nil, Null:
		return s.Data, nil
	case Name:
		if f != "FlateDecode" {
			return nil, fmt.Errorf("pdf: unsupported filter %s", f)
		}
	case Array:
		if len(f) != 1 {
			return nil, fmt.Errorf("pdf: unsupported filter chain of length %d", len(f))
		}
		if name, ok := f[0].(Name); !ok || name != "FlateDecode" {
			return nil, fmt.Errorf("pdf: unsupported filter %v", f[0])
		}
	default:
		return nil, fmt.Errorf("pdf: invalid /Filter entry %T", filter)
	}

	zr, err := zlib.NewReader(bytes.NewReader(s.Data))
	if err != nil {
		return nil, fmt.Errorf("pdf: flate decode failed: %w", err)
	}
	defer zr.Close()

	inflated, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("pdf: flate decode failed: %w", err)
	}

	parms, err := resolve(s.Dict["DecodeParms"])
	if err != nil {
		return nil, err
	}
	parmsDict, ok := parms.(Dict)
	if !ok {
		return inflated, nil
	}

	predictor, _ := parmsDict.Int("Predictor")
	if predictor <= 1 {
		return inflated, nil
	}

	columns, ok := parmsDict.Int("Columns")
	if !ok {
		columns = 1
	}
	colors, ok := parmsDict.Int("Colors")
	if !ok {
		colors = 1
	}
	bits, ok := parmsDict.Int("BitsPerComponent")
	if !ok {
		bits = 8
	}

	return applyPNGPredictor(inflated, int(columns), int(colors), int(bits))
}

// applyPNGPredictor reverses PNG row filters (predictors 10-15)
func applyPNGPredictor(data []byte, columns, colors, bits int) ([]byte, error) {
	bpp := (colors*bits + 7) / 8
	rowLen := (columns*colors*bits + 7) / 8
	stride := rowLen + 1

	if rowLen <= 0 || len(data)%stride != 0 {
		return nil, fmt.Errorf("pdf: predictor data length %d does not fit row length %d", len(data), rowLen)
	}

	rows := len(data) / stride
	out := make([]byte, 0, rows*rowLen)
	prev := make([]byte, rowLen)

	for r := 0; r < rows; r++ {
		filter := data[r*stride]
		row := make([]byte, rowLen)
		copy(row, data[r*stride+1:(r+1)*stride])

		switch filter {
		case 0: // None
		case 1: // Sub
			for i := bpp; i < rowLen; i++ {
				row[i] += row[i-bpp]
			}
		case 2: // Up
			for i := 0; i < rowLen; i++ {
				row[i] += prev[i]
			}
		case 3: // Average
			for i := 0; i < rowLen; i++ {
				left := 0
				if i >= bpp {
					left = int(row[i-bpp])
				}
				row[i] += byte((left + int(prev[i])) / 2)
			}
		case 4: // Paeth
			for i := 0; i < rowLen; i++ {
				left, upLeft := 0, 0
				if i >= bpp {
					left = int(row[i-bpp])
					upLeft = int(prev[i-bpp])
				}
				row[i] += paeth(left, int(prev[i]), upLeft)
			}
		default:
			return nil, fmt.Errorf("pdf: unknown PNG filter %d", filter)
		}

		out = append(out, row...)
		prev = row
	}

	return out, nil
}

func paeth(a, b, c int) byte {
	p := a + b - c
	pa, pb, pc := absInt(p-a), absInt(p-b), absInt(p-c)
	if pa <= pb && pa <= pc {
		return byte(a)
	}
	if pb <= pc {
		return byte(b)
	}
	return byte(c)
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}

// flateEncode compresses data for newly written streams
func flateEncode(data []byte) []byte {
	var buf bytes.Buffer
	zw := zlib.NewWriter(&buf)
	zw.Write(data)
	zw.Close()
	return buf.Bytes()
}
