package fsl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/mat"
)

// ErrSingularAffine is returned when an affine matrix has no inverse.
var ErrSingularAffine = errors.New("affine matrix is singular")

// ReadAffine parses a 4x4 matrix in the plain-text layout FLIRT writes to
// .mat files: four rows of four whitespace-separated numbers.
func ReadAffine(r io.Reader) (*mat.Dense, error) {
	var data []float64
	rows := 0
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 4 {
			return nil, fmt.Errorf("affine row %d has %d columns, want 4", rows+1, len(fields))
		}
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("affine row %d: %w", rows+1, err)
			}
			data = append(data, v)
		}
		rows++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("error reading affine: %w", err)
	}
	if rows != 4 {
		return nil, fmt.Errorf("affine has %d rows, want 4", rows)
	}

	m := mat.NewDense(4, 4, data)
	if m.At(3, 0) != 0 || m.At(3, 1) != 0 || m.At(3, 2) != 0 || m.At(3, 3) != 1 {
		return nil, errors.New("affine last row must be 0 0 0 1")
	}
	return m, nil
}

// WriteAffine writes m in the same layout ReadAffine accepts.
func WriteAffine(w io.Writer, m mat.Matrix) error {
	r, c := m.Dims()
	if r != 4 || c != 4 {
		return fmt.Errorf("affine must be 4x4, got %dx%d", r, c)
	}
	bw := bufio.NewWriter(w)
	for i := 0; i < 4; i++ {
		row := make([]string, 4)
		for j := range row {
			row[j] = affineEntry(m.At(i, j))
		}
		fmt.Fprintln(bw, strings.Join(row, "  "))
	}
	return bw.Flush()
}

// affineEntry prints v to nine decimals without trailing zeros, folding
// negative zero and inversion noise.
func affineEntry(v float64) string {
	s := strconv.FormatFloat(v, 'f', 9, 64)
	s = strings.TrimRight(strings.TrimRight(s, "0"), ".")
	if s == "-0" {
		return "0"
	}
	return s
}

// Apply evaluates convert_xfm -inverse on m. The result composed with m is
// the identity, within floating point error.
func (c *ConvertXFM) Apply(m mat.Matrix) (*mat.Dense, error) {
	if !c.Invert {
		return nil, errors.New("convert_xfm: no operation requested")
	}
	if mat.Det(m) == 0 {
		return nil, ErrSingularAffine
	}

	var inv mat.Dense
	if err := inv.Inverse(m); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return nil, fmt.Errorf("%w: %v", ErrSingularAffine, err)
		}
		return nil, err
	}
	return &inv, nil
}
