package results

import (
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"

	_ "modernc.org/sqlite"
)

// Dataset name conventions written by the bundled sampler tools.
const (
	// SamplePrefix precedes a parameter name, e.g. "samples/final_mass".
	SamplePrefix = "samples/"
	// LoglikelihoodKey holds the log-likelihood of each posterior sample.
	LoglikelihoodKey = "samples/loglikelihood"
	// PSDPrefix precedes a detector name, e.g. "psds/H1".
	PSDPrefix = "psds/"
)

// ErrNotFound is returned when a named dataset or attribute does not exist.
var ErrNotFound = errors.New("results: not found")

// File is an open result container.
type File struct {
	db *sql.DB
}

// Open opens an existing container read/write.
func Open(path string) (*File, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("results: open container: %w", err)
	}
	f := &File{db: db}
	if err := f.createSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return f, nil
}

func (f *File) createSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS datasets (
		name TEXT PRIMARY KEY,
		data BLOB NOT NULL
	);
	CREATE TABLE IF NOT EXISTS attrs (
		name TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	CREATE TABLE IF NOT EXISTS config (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		text TEXT NOT NULL
	);`
	if _, err := f.db.Exec(schema); err != nil {
		return fmt.Errorf("results: create schema: %w", err)
	}
	return nil
}

// Close closes the underlying database.
func (f *File) Close() error {
	return f.db.Close()
}

// Dataset returns the named float64 array.
func (f *File) Dataset(name string) ([]float64, error) {
	var blob []byte
	err := f.db.QueryRow("SELECT data FROM datasets WHERE name = ?", name).Scan(&blob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: dataset %q", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("results: read dataset %q: %w", name, err)
	}
	if len(blob)%8 != 0 {
		return nil, fmt.Errorf("results: dataset %q has truncated payload: %d bytes", name, len(blob))
	}
	out := make([]float64, len(blob)/8)
	for i := range out {
		out[i] = math.Float64frombits(binary.LittleEndian.Uint64(blob[8*i:]))
	}
	return out, nil
}

// PutDataset stores or replaces the named float64 array.
func (f *File) PutDataset(name string, data []float64) error {
	if name == "" {
		return fmt.Errorf("results: dataset name must not be empty")
	}
	blob := make([]byte, 8*len(data))
	for i, v := range data {
		binary.LittleEndian.PutUint64(blob[8*i:], math.Float64bits(v))
	}
	_, err := f.db.Exec(
		"INSERT INTO datasets (name, data) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET data = excluded.data",
		name, blob)
	if err != nil {
		return fmt.Errorf("results: write dataset %q: %w", name, err)
	}
	return nil
}

// Names returns all dataset names with the given prefix, sorted, with the
// prefix stripped.
func (f *File) Names(prefix string) ([]string, error) {
	rows, err := f.db.Query("SELECT name FROM datasets WHERE name LIKE ? ESCAPE '\\'", escapeLike(prefix)+"%")
	if err != nil {
		return nil, fmt.Errorf("results: list datasets: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("results: scan dataset name: %w", err)
		}
		names = append(names, strings.TrimPrefix(name, prefix))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("results: list datasets: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// Attr returns the named string attribute.
func (f *File) Attr(name string) (string, error) {
	var value string
	err := f.db.QueryRow("SELECT value FROM attrs WHERE name = ?", name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: attr %q", ErrNotFound, name)
	}
	if err != nil {
		return "", fmt.Errorf("results: read attr %q: %w", name, err)
	}
	return value, nil
}

// PutAttr stores or replaces a string attribute.
func (f *File) PutAttr(name, value string) error {
	_, err := f.db.Exec(
		"INSERT INTO attrs (name, value) VALUES (?, ?) ON CONFLICT(name) DO UPDATE SET value = excluded.value",
		name, value)
	if err != nil {
		return fmt.Errorf("results: write attr %q: %w", name, err)
	}
	return nil
}

// ConfigText returns the configuration the container was produced from.
func (f *File) ConfigText() (string, error) {
	var text string
	err := f.db.QueryRow("SELECT text FROM config WHERE id = 1").Scan(&text)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("%w: config text", ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("results: read config text: %w", err)
	}
	return text, nil
}

// PutConfigText stores the configuration text.
func (f *File) PutConfigText(text string) error {
	_, err := f.db.Exec(
		"INSERT INTO config (id, text) VALUES (1, ?) ON CONFLICT(id) DO UPDATE SET text = excluded.text",
		text)
	if err != nil {
		return fmt.Errorf("results: write config text: %w", err)
	}
	return nil
}

// Samples returns the posterior samples of one parameter.
func (f *File) Samples(param string) ([]float64, error) {
	return f.Dataset(SamplePrefix + param)
}

// Parameters lists the sampled parameter names, excluding the
// log-likelihood column.
func (f *File) Parameters() ([]string, error) {
	names, err := f.Names(SamplePrefix)
	if err != nil {
		return nil, err
	}
	out := names[:0]
	for _, n := range names {
		if SamplePrefix+n != LoglikelihoodKey {
			out = append(out, n)
		}
	}
	return out, nil
}

// PSD returns the stored one-sided PSD for a detector together with its
// frequency resolution, taken from the "psd_delta_f" attribute.
func (f *File) PSD(detector string) (power []float64, deltaF float64, err error) {
	power, err = f.Dataset(PSDPrefix + detector)
	if err != nil {
		return nil, 0, err
	}
	raw, err := f.Attr("psd_delta_f")
	if err != nil {
		return nil, 0, err
	}
	if _, err := fmt.Sscanf(raw, "%g", &deltaF); err != nil || deltaF <= 0 {
		return nil, 0, fmt.Errorf("results: bad psd_delta_f attribute %q", raw)
	}
	return power, deltaF, nil
}
