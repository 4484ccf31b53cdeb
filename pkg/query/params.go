package query

import (
	"fmt"

	"github.com/ekaya-inc/ekaya-query-engine/pkg/convert"
)

// resolveParams returns the bind values for every declared parameter that
// has a supplied or default value, converted and processed. Values supplied
// for undeclared parameters are ignored.
func (d *Definition) resolveParams(qc *Context) (map[string]any, error) {
	params := make(map[string]any, len(d.Parameters))
	for i := range d.Parameters {
		p := &d.Parameters[i]
		raw, ok := qc.params[p.Name]
		if !ok {
			if p.Default == nil {
				continue
			}
			raw = p.Default
		}
		v, err := p.resolve(raw)
		if err != nil {
			return nil, err
		}
		params[p.Name] = v
	}
	return params, nil
}

// resolve converts raw to the parameter type, then validates and processes it.
func (p *Parameter) resolve(raw any) (any, error) {
	v, err := convert.Convert(raw, p.Type)
	if err != nil {
		return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
	}
	if p.Validate != nil {
		if err := p.Validate(v); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
	}
	if p.Process != nil {
		if v, err = p.Process(v); err != nil {
			return nil, fmt.Errorf("parameter %q: %w", p.Name, err)
		}
	}
	return v, nil
}
