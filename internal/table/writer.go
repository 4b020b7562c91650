package table

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteCSV writes a header and string records to w
func WriteCSV(w io.Writer, columns []string, records [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(columns); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, rec := range records {
		if err := cw.Write(rec); err != nil {
			return fmt.Errorf("write record %d: %w", i+1, err)
		}
	}
	cw.Flush()
	return cw.Error()
}
