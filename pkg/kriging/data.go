package kriging

import (
	"bufio"
	"fmt"
	"io"
	"os"
)

// Box is a half-open index range [IMin, IMax) x [JMin, JMax) over the grid.
// Observation stores use this convention for both counting and copying.
type Box struct {
	IMin, IMax int
	JMin, JMax int
}

// Empty reports whether the box contains no grid nodes
func (b Box) Empty() bool { return b.IMax <= b.IMin || b.JMax <= b.JMin }

// Contains reports whether node (i, j) lies inside the box
func (b Box) Contains(i, j int) bool {
	return i >= b.IMin && i < b.IMax && j >= b.JMin && j < b.JMax
}

// Cells returns the number of grid nodes in the box
func (b Box) Cells() int {
	if b.Empty() {
		return 0
	}
	return (b.IMax - b.IMin) * (b.JMax - b.JMin)
}

func (b Box) String() string {
	return fmt.Sprintf("[%d,%d)x[%d,%d)", b.IMin, b.IMax, b.JMin, b.JMax)
}

// Data is the capability set shared by the observation stores. S is the
// concrete store type, so a block always holds the same variant as the
// store it was cut from.
type Data[S any] interface {
	// Clone returns a deep copy of the store
	Clone() S

	// NewInstance returns an empty store with the same grid geometry
	NewInstance() S

	// Len returns the number of observations
	Len() int

	// CountInBox returns the number of observations inside b
	CountInBox(b Box) int

	// AddToBlock copies every observation inside b into dst
	AddToBlock(dst S, b Box)

	// Finalize completes pending merges
	Finalize()

	// WriteTo writes the observations as a text table
	WriteTo(w io.Writer) (int64, error)
}

// WriteToFile writes the observations of d to the named file
func WriteToFile(d interface{ WriteTo(io.Writer) (int64, error) }, path string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("error creating observation file: %w", err)
	}
	defer file.Close()

	if _, err := d.WriteTo(file); err != nil {
		return fmt.Errorf("error writing observation file: %w", err)
	}
	return file.Close()
}

// tableWriter writes the fixed-width observation table
type tableWriter struct {
	w *bufio.Writer
	n int64
}

func newTableWriter(w io.Writer) *tableWriter {
	tw := &tableWriter{w: bufio.NewWriter(w)}
	tw.printf("    i     j     value\n")
	tw.printf("---------------------\n")
	return tw
}

func (tw *tableWriter) printf(format string, args ...any) {
	n, _ := fmt.Fprintf(tw.w, format, args...)
	tw.n += int64(n)
}

func (tw *tableWriter) flush() (int64, error) {
	return tw.n, tw.w.Flush()
}
