package expt

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Layer describes one layer of a planned network.
type Layer interface {
	Marshal() LayerConfig
	Summary(c Config) string
}

// Layer configuration details
type LayerConfig struct {
	Type string
	Data json.RawMessage `json:",omitempty"`
}

// Unmarshal JSON data and construct the layer description.
func (l LayerConfig) Unmarshal() (Layer, error) {
	var layer Layer
	switch l.Type {
	case "conv":
		layer = new(Conv)
	case "maxPool":
		layer = new(MaxPool)
	case "linear":
		layer = new(Linear)
	case "dropout":
		layer = new(Dropout)
	case "flatten":
		return Flatten{}, nil
	default:
		return nil, fmt.Errorf("invalid layer type: %q", l.Type)
	}
	if len(l.Data) > 0 {
		if err := json.Unmarshal(l.Data, layer); err != nil {
			return nil, fmt.Errorf("layer %s: %w", l.Type, err)
		}
	}
	switch v := layer.(type) {
	case *Conv:
		return *v, nil
	case *MaxPool:
		return *v, nil
	case *Linear:
		return *v, nil
	case *Dropout:
		return *v, nil
	}
	return layer, nil
}

// Convolutional layer with Nfeats filters of Size x Size.
type Conv struct {
	Nfeats, Size int
}

func (c Conv) Marshal() LayerConfig {
	return LayerConfig{Type: "conv", Data: marshal(c)}
}

func (c Conv) Summary(Config) string {
	return fmt.Sprintf("conv %d %dx%d", c.Nfeats, c.Size, c.Size)
}

// Max pooling layer.
type MaxPool struct {
	Size int
}

func (c MaxPool) Marshal() LayerConfig {
	return LayerConfig{Type: "maxPool", Data: marshal(c)}
}

func (c MaxPool) Summary(Config) string {
	return fmt.Sprintf("max pool %dx%d", c.Size, c.Size)
}

// Linear fully connected layer. If Nout is zero the hidden width from the config is used.
type Linear struct {
	Nout int
}

func (c Linear) Marshal() LayerConfig {
	return LayerConfig{Type: "linear", Data: marshal(c)}
}

func (c Linear) Summary(conf Config) string {
	n := c.Nout
	if n == 0 {
		n = conf.Hidden
	}
	return "dense " + strconv.Itoa(n)
}

// Dropout layer. If Ratio is zero the dropout from the config is used.
type Dropout struct {
	Ratio float64
}

func (c Dropout) Marshal() LayerConfig {
	return LayerConfig{Type: "dropout", Data: marshal(c)}
}

func (c Dropout) Summary(conf Config) string {
	r := c.Ratio
	if r == 0 {
		r = conf.Dropout
	}
	return "dropout " + strconv.FormatFloat(r, 'f', -1, 64)
}

// Flatten layer reshapes the convolution output for the dense layers.
type Flatten struct{}

func (c Flatten) Marshal() LayerConfig {
	return LayerConfig{Type: "flatten"}
}

func (c Flatten) Summary(Config) string {
	return "flatten"
}

func marshal(v interface{}) []byte {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return data
}
