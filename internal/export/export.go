// Package export writes stored traces to CSV, JSON and PNG.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/AnthonyZalev/gridtrace/internal/storage"
)

// WriteCSV streams a curve as CSV.
func WriteCSV(w io.Writer, meta *storage.RunMetadata, curve *storage.Curve) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	nb := 0
	if len(curve.Vm) > 0 {
		nb = len(curve.Vm[0])
	}
	header := []string{"step", "lambda"}
	for i := 0; i < nb; i++ {
		name := fmt.Sprintf("bus%d", i)
		if i < len(meta.BusNames) {
			name = meta.BusNames[i]
		}
		header = append(header, name+"_vm", name+"_va")
	}
	if err := cw.Write(header); err != nil {
		return err
	}
	for i := range curve.Lambdas {
		row := []string{strconv.Itoa(i), strconv.FormatFloat(curve.Lambdas[i], 'f', 8, 64)}
		for b := 0; b < nb; b++ {
			row = append(row,
				strconv.FormatFloat(curve.Vm[i][b], 'f', 8, 64),
				strconv.FormatFloat(curve.Va[i][b], 'f', 8, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	return nil
}

type jsonTrace struct {
	Meta    *storage.RunMetadata `json:"meta"`
	Lambdas []float64            `json:"lambdas"`
	Vm      [][]float64          `json:"vm"`
	Va      [][]float64          `json:"va"`
}

// WriteJSON streams the metadata and curve as one JSON document.
func WriteJSON(w io.Writer, meta *storage.RunMetadata, curve *storage.Curve) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(jsonTrace{
		Meta:    meta,
		Lambdas: curve.Lambdas,
		Vm:      curve.Vm,
		Va:      curve.Va,
	})
}
