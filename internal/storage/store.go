package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"math/cmplx"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/AnthonyZalev/gridtrace/internal/cpf"
	"github.com/AnthonyZalev/gridtrace/internal/metrics"
)

// Store keeps trace runs on disk, one directory per run with metadata.json
// and curve.csv.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// RunMetadata describes a stored trace.
type RunMetadata struct {
	ID        string               `json:"id"`
	Case      string               `json:"case"`
	Timestamp time.Time            `json:"timestamp"`
	Scheme    string               `json:"scheme"`
	StopAt    string               `json:"stop_at"`
	Step      float64              `json:"step"`
	BusNames  []string             `json:"bus_names"`
	Summary   metrics.TraceSummary `json:"summary"`
}

// Save writes a finished trace. The curve file holds one row per
// continuation step: step index, lambda, then Vm and Va per bus.
func (s *Store) Save(caseName string, busNames []string, opts cpf.Options, res *cpf.Result, summary metrics.TraceSummary) (string, error) {
	runID := fmt.Sprintf("%s_%d", caseName, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Case:      caseName,
		Timestamp: time.Now(),
		Scheme:    opts.Scheme.String(),
		StopAt:    opts.StopAt.String(),
		Step:      opts.Step,
		BusNames:  busNames,
		Summary:   summary,
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()
	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "curve.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()
	w := csv.NewWriter(csvFile)
	defer w.Flush()

	if len(res.Voltages) == 0 {
		return runID, nil
	}
	nb := len(res.Voltages[0])
	header := []string{"step", "lambda"}
	for i := 0; i < nb; i++ {
		header = append(header, fmt.Sprintf("vm%d", i), fmt.Sprintf("va%d", i))
	}
	if err := w.Write(header); err != nil {
		return "", err
	}
	for i, v := range res.Voltages {
		row := []string{
			strconv.Itoa(i),
			strconv.FormatFloat(res.Lambdas[i], 'f', 8, 64),
		}
		for _, vb := range v {
			row = append(row,
				strconv.FormatFloat(cmplx.Abs(vb), 'f', 8, 64),
				strconv.FormatFloat(cmplx.Phase(vb), 'f', 8, 64))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	return runID, nil
}

func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}
	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(s.baseDir, entry.Name(), "metadata.json"))
		if err != nil {
			continue
		}
		var meta RunMetadata
		if err := json.Unmarshal(data, &meta); err != nil {
			continue
		}
		runs = append(runs, meta)
	}
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, "metadata.json"))
	if err != nil {
		return nil, err
	}
	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Curve is a loaded trajectory.
type Curve struct {
	Lambdas []float64
	Vm      [][]float64 // [step][bus]
	Va      [][]float64
}

func (s *Store) LoadCurve(runID string) (*Curve, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, "curve.csv"))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, err
	}
	if len(records) < 2 {
		return &Curve{}, nil
	}

	nb := (len(records[0]) - 2) / 2
	c := &Curve{}
	for _, rec := range records[1:] {
		if len(rec) < 2+2*nb {
			continue
		}
		lam, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			continue
		}
		vm := make([]float64, nb)
		va := make([]float64, nb)
		ok := true
		for b := 0; b < nb; b++ {
			if vm[b], err = strconv.ParseFloat(rec[2+2*b], 64); err != nil {
				ok = false
				break
			}
			if va[b], err = strconv.ParseFloat(rec[3+2*b], 64); err != nil {
				ok = false
				break
			}
		}
		if !ok {
			continue
		}
		c.Lambdas = append(c.Lambdas, lam)
		c.Vm = append(c.Vm, vm)
		c.Va = append(c.Va, va)
	}
	return c, nil
}
