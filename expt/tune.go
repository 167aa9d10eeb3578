package expt

import (
	"fmt"
	"strings"
)

// TuneParams lists the values to try for one config field.
type TuneParams struct {
	Name   string
	Values []string
}

// ParseTune reads a name=v1,v2,... sweep definition.
func ParseTune(s string) (TuneParams, error) {
	name, vals, ok := strings.Cut(s, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return TuneParams{}, fmt.Errorf("tune %q: expecting name=value,value", s)
	}
	p := TuneParams{Name: strings.TrimSpace(name)}
	for _, v := range strings.Split(vals, ",") {
		if v = strings.TrimSpace(v); v != "" {
			p.Values = append(p.Values, v)
		}
	}
	if len(p.Values) == 0 {
		return p, fmt.Errorf("tune %s: %w", p.Name, ErrNoValues)
	}
	return p, nil
}

func (p TuneParams) String() string {
	return p.Name + "=" + strings.Join(p.Values, ",")
}

// Plan returns a config for each combination of the tuning values, repeated runs times. The first value
// of each parameter is applied to the base config.
func Plan(conf Config, params []TuneParams, runs int) ([]Config, error) {
	var err error
	for _, p := range params {
		if len(p.Values) == 0 {
			return nil, fmt.Errorf("tune %s: %w", p.Name, ErrNoValues)
		}
		if conf, err = conf.SetString(p.Name, p.Values[0]); err != nil {
			return nil, err
		}
	}
	list, err := permute(conf, params, len(params)-1, []Config{conf})
	if err != nil {
		return nil, err
	}
	if runs < 1 {
		runs = 1
	}
	res := make([]Config, 0, runs*len(list))
	for run := 0; run < runs; run++ {
		res = append(res, list...)
	}
	return res, nil
}

func permute(conf Config, params []TuneParams, n int, list []Config) ([]Config, error) {
	if n < 0 {
		return list, nil
	}
	var err error
	for i, val := range params[n].Values {
		if i > 0 {
			if conf, err = conf.SetString(params[n].Name, val); err != nil {
				return nil, err
			}
			list = append(list, conf)
		}
		if list, err = permute(conf, params, n-1, list); err != nil {
			return nil, err
		}
	}
	return list, nil
}

// Pending returns planned result rows for the configs, numbered on from the last experiment in the report.
func Pending(r *Report, configs []Config) []Experiment {
	id := 1
	if r != nil {
		id = r.NextID()
	}
	rows := make([]Experiment, len(configs))
	for i, c := range configs {
		rows[i] = c.Experiment(id + i)
	}
	return rows
}

// Describe lists the tuned values of a config.
func Describe(c Config, params []TuneParams) string {
	s := make([]string, len(params))
	for i, p := range params {
		s[i] = fmt.Sprintf("%s=%v", p.Name, c.Get(p.Name))
	}
	return strings.Join(s, " ")
}
