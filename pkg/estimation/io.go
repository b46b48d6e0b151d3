package estimation

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"trendkrig/internal/models"
)

// irapMissing is the undefined node value of the Irap Classic format
const irapMissing = 9999900.0

// irapHeader is the magic number opening an Irap Classic ASCII surface
const irapHeader = -996

// ReadPoints reads x,y,z observations from CSV. Lines starting with # are
// comments and a first line that does not parse as numbers is a header.
// Extra columns are ignored.
func ReadPoints(r io.Reader) ([]models.Point, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	var points []models.Point
	for line := 1; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("error reading observations: %w", err)
		}
		if len(rec) < 3 {
			return nil, fmt.Errorf("line %d: expected x,y,z, got %d fields", line, len(rec))
		}

		var xyz [3]float64
		for k := range xyz {
			xyz[k], err = strconv.ParseFloat(strings.TrimSpace(rec[k]), 64)
			if err != nil {
				break
			}
		}
		if err != nil {
			if len(points) == 0 && line == 1 {
				continue
			}
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		points = append(points, models.Point{X: xyz[0], Y: xyz[1], Z: xyz[2]})
	}
	return points, nil
}

// LoadPoints reads observations from a CSV file
func LoadPoints(path string) ([]models.Point, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open observations: %w", err)
	}
	defer f.Close()
	return ReadPoints(f)
}

// WriteIrap writes s in Irap Classic ASCII format, six values per line.
// MissingValue nodes are written as the Irap undefined value.
func WriteIrap(w io.Writer, s *models.Surface) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "%d %d %f %f\n", irapHeader, s.NJ, s.DX, s.DY)
	fmt.Fprintf(bw, "%f %f %f %f\n", s.XMin, s.XMax(), s.YMin, s.YMax())
	fmt.Fprintf(bw, "%d %f %f %f\n", s.NI, 0.0, s.XMin, s.YMin)
	fmt.Fprintf(bw, "0 0 0 0 0 0 0\n")

	for k, v := range s.Data {
		if v == models.MissingValue {
			v = irapMissing
		}
		sep := " "
		if k%6 == 5 || k == len(s.Data)-1 {
			sep = "\n"
		}
		fmt.Fprintf(bw, "%.6f%s", v, sep)
	}
	return bw.Flush()
}

// ReadIrap reads a surface in Irap Classic ASCII format. Rotated surfaces
// are not supported.
func ReadIrap(r io.Reader) (*models.Surface, error) {
	sc := bufio.NewScanner(r)
	sc.Split(bufio.ScanWords)

	next := func() (float64, error) {
		if !sc.Scan() {
			if err := sc.Err(); err != nil {
				return 0, err
			}
			return 0, io.ErrUnexpectedEOF
		}
		return strconv.ParseFloat(sc.Text(), 64)
	}

	var head [19]float64
	for k := range head {
		v, err := next()
		if err != nil {
			return nil, fmt.Errorf("error reading irap header: %w", err)
		}
		head[k] = v
	}
	if int(head[0]) != irapHeader {
		return nil, fmt.Errorf("not an irap classic surface, header %g", head[0])
	}
	nj, dx, dy := int(head[1]), head[2], head[3]
	ni, rot := int(head[8]), head[9]
	if ni <= 0 || nj <= 0 || !(dx > 0) || !(dy > 0) {
		return nil, fmt.Errorf("invalid irap geometry %dx%d spacing %g, %g", ni, nj, dx, dy)
	}
	if rot != 0 {
		return nil, fmt.Errorf("rotated irap surfaces are not supported (rotation %g)", rot)
	}

	s := models.NewSurface(ni, nj, head[10], head[11], dx, dy, 0)
	for k := range s.Data {
		v, err := next()
		if err != nil {
			return nil, fmt.Errorf("error reading irap value %d of %d: %w", k, len(s.Data), err)
		}
		if v == irapMissing {
			v = models.MissingValue
		}
		s.Data[k] = v
	}
	return s, nil
}

// LoadIrap reads an Irap Classic ASCII surface from a file
func LoadIrap(path string) (*models.Surface, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open surface: %w", err)
	}
	defer f.Close()
	return ReadIrap(f)
}

// SaveIrap writes s to path, creating the directory if needed
func SaveIrap(s *models.Surface, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create surface file: %w", err)
	}
	if err := WriteIrap(f, s); err != nil {
		f.Close()
		return fmt.Errorf("failed to write surface: %w", err)
	}
	return f.Close()
}
