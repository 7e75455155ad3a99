// SPDX-License-Identifier: MIT

package cdict

import (
	"context"
	"fmt"
	"math/rand"
	"reflect"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/text/unicode/norm"

	"github.com/davips/cdict/hosh"
)

// Let wraps a Go function with an "inputs:outputs" schema so it can be
// applied to dicts. Inputs name the dict fields bound as arguments, in
// order; outputs name the fields the application creates. A "*" prefix
// marks a starred input: the function is mapped over its elements and the
// outputs are collected into lists.
//
// The wrapped function may take a leading context.Context and may return a
// trailing error. Besides one return per output, a single map[string]any
// return is accepted and read by output name.
//
// A Let carries its own identity, used to compose output ids. By default it
// is digested from the function name and schema; WithID pins it explicitly
// so refactors do not change ids.
type Let struct {
	fn      reflect.Value
	fnType  reflect.Type
	name    string
	h       hosh.Hosh
	inputs  []input
	outputs []string

	wantsCtx   bool
	returnsErr bool
	mapReturn  bool

	defaults map[string]any
	choices  map[string][]any

	mu  sync.Mutex
	rng *rand.Rand
}

type input struct {
	name    string
	starred bool
}

// LetOption configures a Let at construction time.
type LetOption func(*letConfig)

type letConfig struct {
	id       string
	seed     int64
	defaults map[string]any
	choices  map[string][]any
}

// WithID pins the function identity. A 40-digit id is used as-is, anything
// else is digested.
func WithID(id string) LetOption {
	return func(c *letConfig) { c.id = id }
}

// WithDefault supplies a value for an input absent from the dict. The value
// becomes a regular field of the resulting dict.
func WithDefault(field string, v any) LetOption {
	return func(c *letConfig) {
		if c.defaults == nil {
			c.defaults = map[string]any{}
		}
		c.defaults[norm.NFC.String(field)] = v
	}
}

// WithChoice supplies candidate values for an input absent from the dict;
// one is sampled per application. Sampling is deterministic for a given
// seed and application sequence, so runs are reproducible.
func WithChoice(field string, options ...any) LetOption {
	return func(c *letConfig) {
		if c.choices == nil {
			c.choices = map[string][]any{}
		}
		c.choices[norm.NFC.String(field)] = options
	}
}

// WithSeed seeds choice sampling. The default seed is 0.
func WithSeed(seed int64) LetOption {
	return func(c *letConfig) { c.seed = seed }
}

var (
	ctxType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errType = reflect.TypeOf((*error)(nil)).Elem()
	mapType = reflect.TypeOf(map[string]any(nil))
)

// NewLet wraps fn under the given schema.
func NewLet(fn any, schema string, opts ...LetOption) (*Let, error) {
	if fn == nil {
		return nil, fmt.Errorf("%w: nil function", ErrBadSchema)
	}
	fv := reflect.ValueOf(fn)
	ft := fv.Type()
	if ft.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %T is not a function", ErrBadSchema, fn)
	}
	if ft.IsVariadic() {
		return nil, fmt.Errorf("%w: variadic functions are not supported", ErrBadSchema)
	}

	inSide, outSide, found := strings.Cut(schema, ":")
	if !found {
		return nil, fmt.Errorf("%w: %q lacks the inputs:outputs separator", ErrBadSchema, schema)
	}
	inputs, err := parseInputs(inSide)
	if err != nil {
		return nil, err
	}
	outputs, err := parseOutputs(outSide)
	if err != nil {
		return nil, err
	}

	wantsCtx := ft.NumIn() > 0 && ft.In(0) == ctxType
	nIn := ft.NumIn()
	if wantsCtx {
		nIn--
	}
	if nIn != len(inputs) {
		return nil, fmt.Errorf("%w: schema names %d inputs, function takes %d",
			ErrArityMismatch, len(inputs), nIn)
	}

	returnsErr := ft.NumOut() > 0 && ft.Out(ft.NumOut()-1) == errType
	nOut := ft.NumOut()
	if returnsErr {
		nOut--
	}
	mapReturn := false
	switch {
	case nOut == len(outputs):
	case nOut == 1 && ft.Out(0) == mapType:
		mapReturn = true
	default:
		return nil, fmt.Errorf("%w: schema names %d outputs, function returns %d",
			ErrArityMismatch, len(outputs), nOut)
	}

	var cfg letConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	known := make(map[string]struct{}, len(inputs))
	for _, in := range inputs {
		known[in.name] = struct{}{}
	}
	for f := range cfg.defaults {
		if _, ok := known[f]; !ok {
			return nil, fmt.Errorf("%w: default for %q, which is not an input", ErrBadSchema, f)
		}
	}
	for f, options := range cfg.choices {
		if _, ok := known[f]; !ok {
			return nil, fmt.Errorf("%w: choice for %q, which is not an input", ErrBadSchema, f)
		}
		if len(options) == 0 {
			return nil, fmt.Errorf("%w: empty choice for %q", ErrBadSchema, f)
		}
	}

	name := runtime.FuncForPC(fv.Pointer()).Name()
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		name = "func"
	}

	var h hosh.Hosh
	switch {
	case cfg.id == "":
		h = hosh.DigestString("let:" + name + ":" + canonicalSchema(inputs, outputs))
	case hosh.IsID(cfg.id):
		h = hosh.MustFromID(cfg.id)
	default:
		h = hosh.DigestString(cfg.id)
	}

	return &Let{
		fn:         fv,
		fnType:     ft,
		name:       name,
		h:          h,
		inputs:     inputs,
		outputs:    outputs,
		wantsCtx:   wantsCtx,
		returnsErr: returnsErr,
		mapReturn:  mapReturn,
		defaults:   cfg.defaults,
		choices:    cfg.choices,
		rng:        rand.New(rand.NewSource(cfg.seed)),
	}, nil
}

// Map lifts fn elementwise over a list field: Map(square, "xs", "ys") is
// shorthand for NewLet(square, "*xs:ys").
func Map(fn any, in, out string, opts ...LetOption) (*Let, error) {
	return NewLet(fn, "*"+in+":"+out, opts...)
}

// Name returns the function name the Let was built from.
func (l *Let) Name() string { return l.name }

// Hosh returns the function identity element.
func (l *Let) Hosh() hosh.Hosh { return l.h }

// ID returns the function id.
func (l *Let) ID() string { return l.h.ID() }

// Inputs returns the schema input names, stars included.
func (l *Let) Inputs() []string {
	out := make([]string, len(l.inputs))
	for i, in := range l.inputs {
		if in.starred {
			out[i] = "*" + in.name
		} else {
			out[i] = in.name
		}
	}
	return out
}

// Outputs returns the schema output names.
func (l *Let) Outputs() []string {
	return append([]string(nil), l.outputs...)
}

func (l *Let) sample(options []any) any {
	l.mu.Lock()
	defer l.mu.Unlock()
	return options[l.rng.Intn(len(options))]
}

// callAdapter returns the function the lazy machinery invokes: args are
// resolved input contents in schema order, results are output contents in
// schema order.
func (l *Let) callAdapter() func(context.Context, []any) ([]any, error) {
	for _, in := range l.inputs {
		if in.starred {
			return l.invokeElementwise
		}
	}
	return l.invoke
}

// invoke calls the wrapped function once, with one concrete argument per
// schema input.
func (l *Let) invoke(ctx context.Context, args []any) ([]any, error) {
	in := make([]reflect.Value, 0, len(args)+1)
	off := 0
	if l.wantsCtx {
		in = append(in, reflect.ValueOf(ctx))
		off = 1
	}
	for i, a := range args {
		av, err := coerce(a, l.fnType.In(off+i))
		if err != nil {
			return nil, fmt.Errorf("%w: input %s of %s: %v",
				ErrArityMismatch, l.inputs[i].name, l.name, err)
		}
		in = append(in, av)
	}
	outs := l.fn.Call(in)
	if l.returnsErr {
		if last := outs[len(outs)-1]; !last.IsNil() {
			return nil, fmt.Errorf("%s: %w", l.name, last.Interface().(error))
		}
		outs = outs[:len(outs)-1]
	}
	if l.mapReturn {
		m, _ := outs[0].Interface().(map[string]any)
		results := make([]any, len(l.outputs))
		for i, name := range l.outputs {
			v, ok := m[name]
			if !ok {
				return nil, fmt.Errorf("%w: output %s missing from map returned by %s",
					ErrArityMismatch, name, l.name)
			}
			results[i] = v
		}
		return results, nil
	}
	results := make([]any, len(outs))
	for i, o := range outs {
		results[i] = o.Interface()
	}
	return results, nil
}

// invokeElementwise maps the function over starred inputs, one call per
// element. Plain inputs are broadcast; every starred input must hold the
// same number of elements; outputs are collected into lists.
func (l *Let) invokeElementwise(ctx context.Context, args []any) ([]any, error) {
	n := -1
	for i, in := range l.inputs {
		if !in.starred {
			continue
		}
		rv := reflect.ValueOf(args[i])
		if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
			return nil, fmt.Errorf("%w: starred input %s of %s is not a list",
				ErrArityMismatch, in.name, l.name)
		}
		if n >= 0 && rv.Len() != n {
			return nil, fmt.Errorf("%w: %s holds %d elements, expected %d",
				ErrLengthMismatch, in.name, rv.Len(), n)
		}
		n = rv.Len()
	}
	collected := make([][]any, len(l.outputs))
	for i := range collected {
		collected[i] = make([]any, 0, n)
	}
	for e := 0; e < n; e++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		elem := make([]any, len(args))
		for i, in := range l.inputs {
			if in.starred {
				elem[i] = reflect.ValueOf(args[i]).Index(e).Interface()
			} else {
				elem[i] = args[i]
			}
		}
		outs, err := l.invoke(ctx, elem)
		if err != nil {
			return nil, fmt.Errorf("element %d: %w", e, err)
		}
		for i, o := range outs {
			collected[i] = append(collected[i], o)
		}
	}
	results := make([]any, len(l.outputs))
	for i := range results {
		results[i] = collected[i]
	}
	return results, nil
}

// coerce adapts stored content to a parameter type. Numbers round-trip
// through JSON as float64 and lists as []any, so conversions and
// elementwise slice rebuilds are accepted.
func coerce(a any, t reflect.Type) (reflect.Value, error) {
	if a == nil {
		switch t.Kind() {
		case reflect.Chan, reflect.Func, reflect.Interface, reflect.Map,
			reflect.Pointer, reflect.Slice:
			return reflect.Zero(t), nil
		}
		return reflect.Value{}, fmt.Errorf("cannot use nil as %s", t)
	}
	v := reflect.ValueOf(a)
	if v.Type().AssignableTo(t) {
		return v, nil
	}
	if v.Kind() == reflect.Slice && t.Kind() == reflect.Slice {
		out := reflect.MakeSlice(t, v.Len(), v.Len())
		for i := 0; i < v.Len(); i++ {
			ev, err := coerce(v.Index(i).Interface(), t.Elem())
			if err != nil {
				return reflect.Value{}, fmt.Errorf("element %d: %w", i, err)
			}
			out.Index(i).Set(ev)
		}
		return out, nil
	}
	if v.Type().ConvertibleTo(t) {
		// A numeric-to-string conversion yields a rune string, never what a
		// pipeline wants.
		if t.Kind() == reflect.String && v.Kind() != reflect.String && v.Kind() != reflect.Slice {
			return reflect.Value{}, fmt.Errorf("cannot use %T as %s", a, t)
		}
		return v.Convert(t), nil
	}
	return reflect.Value{}, fmt.Errorf("cannot use %T as %s", a, t)
}

func parseInputs(s string) ([]input, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	seen := make(map[string]struct{}, len(parts))
	inputs := make([]input, 0, len(parts))
	for _, p := range parts {
		name := norm.NFC.String(strings.TrimSpace(p))
		var starred bool
		if rest, ok := strings.CutPrefix(name, "*"); ok {
			name, starred = strings.TrimSpace(rest), true
		}
		if err := validateKey(name); err != nil {
			return nil, fmt.Errorf("%w: input %q: %v", ErrBadSchema, p, err)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate input %q", ErrBadSchema, name)
		}
		seen[name] = struct{}{}
		inputs = append(inputs, input{name: name, starred: starred})
	}
	return inputs, nil
}

func parseOutputs(s string) ([]string, error) {
	if strings.TrimSpace(s) == "" {
		return nil, fmt.Errorf("%w: no outputs", ErrBadSchema)
	}
	parts := strings.Split(s, ",")
	seen := make(map[string]struct{}, len(parts))
	outputs := make([]string, 0, len(parts))
	for _, p := range parts {
		name := norm.NFC.String(strings.TrimSpace(p))
		if strings.HasPrefix(name, "*") {
			return nil, fmt.Errorf("%w: output %q cannot be starred", ErrBadSchema, p)
		}
		if err := validateKey(name); err != nil {
			return nil, fmt.Errorf("%w: output %q: %v", ErrBadSchema, p, err)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("%w: duplicate output %q", ErrBadSchema, name)
		}
		seen[name] = struct{}{}
		outputs = append(outputs, name)
	}
	return outputs, nil
}

func canonicalSchema(inputs []input, outputs []string) string {
	var b strings.Builder
	for i, in := range inputs {
		if i > 0 {
			b.WriteByte(',')
		}
		if in.starred {
			b.WriteByte('*')
		}
		b.WriteString(in.name)
	}
	b.WriteByte(':')
	b.WriteString(strings.Join(outputs, ","))
	return b.String()
}
