package runtime

import (
	"fmt"
	"strconv"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/textloom/loom/pkg/schema"
	"github.com/textloom/loom/pkg/scope"
)

// project computes a step's declared return shape against its final scope.
// A leaf projection resolves to a string; a structured one resolves to an
// ordered map whose field order follows the declaration. Unnamed fields
// get positional keys.
func (x *execution) project(r *schema.Return, sc *scope.Scope) (any, error) {
	if r.IsLeaf() {
		return x.res.Resolve(r.Value, sc)
	}
	return x.projectFields(r.Fields, sc)
}

func (x *execution) projectFields(fields []schema.ReturnField, sc *scope.Scope) (*orderedmap.OrderedMap[string, any], error) {
	out := orderedmap.New[string, any]()
	for i := range fields {
		f := &fields[i]
		key := f.Name
		if key == "" {
			key = strconv.Itoa(i)
		}
		if len(f.Fields) > 0 {
			nested, err := x.projectFields(f.Fields, sc)
			if err != nil {
				return nil, err
			}
			out.Set(key, nested)
			continue
		}
		value, err := x.res.Resolve(f.Value, sc)
		if err != nil {
			return nil, fmt.Errorf("return field %q: %w", key, err)
		}
		out.Set(key, value)
	}
	return out, nil
}
