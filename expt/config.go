package expt

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strconv"
	"strings"
)

// Directory holding saved sweep configurations.
var DataDir = "data"

// Configuration for a planned training run.
type Config struct {
	Name     string
	DataSet  string
	Hidden   int
	Dropout  float64
	Epochs   int
	Batch    int
	RandSeed int64
	Layers   []LayerConfig
}

// Load config from json file under DataDir
func LoadConfig(name string) (c Config, err error) {
	var f *os.File
	if f, err = os.Open(filepath.Join(DataDir, name)); err != nil {
		return
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err = dec.Decode(&c); err != nil {
		return c, fmt.Errorf("config %s: %w", name, err)
	}
	return c, c.check()
}

// Append layers to the config struct
func (c Config) AddLayers(layers ...Layer) Config {
	list := append([]LayerConfig{}, c.Layers...)
	for _, l := range layers {
		list = append(list, l.Marshal())
	}
	c.Layers = list
	return c
}

// Save config to JSON file under DataDir
func (c Config) Save(name string) error {
	if err := os.MkdirAll(DataDir, 0o755); err != nil {
		return err
	}
	tmpPath := filepath.Join(DataDir, "."+name)
	f, err := os.Create(tmpPath)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err = enc.Encode(c); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	return os.Rename(tmpPath, filepath.Join(DataDir, name))
}

func (c Config) check() error {
	for i, l := range c.Layers {
		if _, err := l.Unmarshal(); err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
	}
	return nil
}

// Fields returns the names of the scalar settings.
func (c Config) Fields() []string {
	st := reflect.TypeOf(c)
	fld := make([]string, st.NumField()-1)
	for i := range fld {
		fld[i] = st.Field(i).Name
	}
	return fld
}

// Get returns a setting by name, or nil if there is no such field.
func (c Config) Get(key string) interface{} {
	f := reflect.ValueOf(c).FieldByName(key)
	if !f.IsValid() {
		return nil
	}
	return f.Interface()
}

// Architecture summarises the layers, e.g. "conv 32 3x3, max pool 2x2, flatten, dense 128, dropout 0.5".
func (c Config) Architecture() string {
	var s []string
	for _, l := range c.Layers {
		layer, err := l.Unmarshal()
		if err != nil {
			s = append(s, "?"+l.Type)
			continue
		}
		s = append(s, layer.Summary(c))
	}
	return strings.Join(s, ", ")
}

// Experiment returns a pending results row for this config.
func (c Config) Experiment(id int) Experiment {
	return Experiment{
		ID:           id,
		Architecture: c.Architecture(),
		Hidden:       c.Hidden,
		Dropout:      c.Dropout,
		Remarks:      "planned",
	}
}

func (c Config) String() string {
	str := []string{"== Config =="}
	for _, key := range c.Fields() {
		str = append(str, fmt.Sprintf("%-10s: %v", key, c.Get(key)))
	}
	if len(c.Layers) > 0 {
		str = append(str, "== Layers ==")
		for i, l := range c.Layers {
			desc := "?" + l.Type
			if layer, err := l.Unmarshal(); err == nil {
				desc = layer.Summary(c)
			}
			str = append(str, fmt.Sprintf("%2d: %s", i, desc))
		}
	}
	return strings.Join(str, "\n")
}

// SetString parses val according to the type of the named field and updates it.
func (c Config) SetString(key, val string) (Config, error) {
	s := reflect.ValueOf(&c).Elem()
	f := s.FieldByName(key)
	if !f.IsValid() || key == "Layers" {
		return c, fmt.Errorf("%w: %q", ErrUnknownField, key)
	}
	val = strings.TrimSpace(val)
	var err error
	switch f.Type().Kind() {
	case reflect.Int, reflect.Int64:
		var x int64
		if x, err = strconv.ParseInt(val, 10, 64); err == nil {
			f.SetInt(x)
		}
	case reflect.Float64:
		var x float64
		if x, err = strconv.ParseFloat(val, 64); err == nil {
			f.SetFloat(x)
		}
	case reflect.String:
		f.SetString(val)
	case reflect.Bool:
		var x bool
		if x, err = strconv.ParseBool(val); err == nil {
			f.SetBool(x)
		}
	default:
		return c, fmt.Errorf("invalid type for SetString: %v", f.Type().Kind())
	}
	if err != nil {
		return c, fmt.Errorf("%s: %w", key, err)
	}
	if key == "Dropout" && !inUnit(c.Dropout) {
		return c, fmt.Errorf("%s=%s: %w", key, val, ErrOutOfRange)
	}
	return c, nil
}
