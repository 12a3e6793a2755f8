package backtest

import (
	"fmt"
	"strings"
)

// Strategy is driven by the engine. Init runs once before replay and is
// the only place indicators may be registered. Next runs once per bar,
// after that bar's fills, from the first bar on which every registered
// indicator has a value.
type Strategy interface {
	Init(ctx *Context) error
	Next(ctx *Context) error
}

// Named strategies report their name in results and journals.
type Named interface {
	Name() string
}

// Funcs adapts plain functions to Strategy. Nil functions do nothing.
type Funcs struct {
	Label  string
	InitFn func(*Context) error
	NextFn func(*Context) error
}

func (f Funcs) Name() string { return f.Label }

func (f Funcs) Init(ctx *Context) error {
	if f.InitFn == nil {
		return nil
	}
	return f.InitFn(ctx)
}

func (f Funcs) Next(ctx *Context) error {
	if f.NextFn == nil {
		return nil
	}
	return f.NextFn(ctx)
}

func strategyName(s Strategy) string {
	if n, ok := s.(Named); ok && n.Name() != "" {
		return n.Name()
	}
	name := strings.TrimPrefix(fmt.Sprintf("%T", s), "*")
	if i := strings.LastIndex(name, "."); i >= 0 {
		name = name[i+1:]
	}
	return name
}
