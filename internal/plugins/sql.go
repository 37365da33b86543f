package plugins

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/fileopen/internal/command"
	"github.com/roach88/fileopen/internal/store"
)

// SQL exposes the SQLite store: raw statements plus the recent-documents
// list.
type SQL struct {
	st  *store.Store
	now func() time.Time
}

// NewSQL creates the sql plugin. A nil now uses time.Now.
func NewSQL(st *store.Store, now func() time.Time) *SQL {
	if now == nil {
		now = time.Now
	}
	return &SQL{st: st, now: now}
}

// Register adds the sql.* and recent.* commands.
func (p *SQL) Register(r *command.Router) error {
	return registerAll(r, []registration{
		{"sql.execute", p.execute},
		{"sql.select", p.selectRows},
		{"recent.touch", p.touch},
		{"recent.list", p.list},
		{"recent.forget", p.forget},
	})
}

type queryArgs struct {
	Query  string `json:"query"`
	Values []any  `json:"values"`
}

// decodeQuery keeps integers exact: JSON numbers without a fraction bind
// as int64, others as float64.
func decodeQuery(args json.RawMessage) (queryArgs, error) {
	var a queryArgs
	if len(args) > 0 {
		dec := json.NewDecoder(bytes.NewReader(args))
		dec.UseNumber()
		if err := dec.Decode(&a); err != nil {
			return a, fmt.Errorf("%w: %v", command.ErrInvalidArgs, err)
		}
	}
	if strings.TrimSpace(a.Query) == "" {
		return a, fmt.Errorf("%w: query is required", command.ErrInvalidArgs)
	}
	for i, v := range a.Values {
		bound, err := bindValue(v)
		if err != nil {
			return a, fmt.Errorf("%w: values[%d]: %v", command.ErrInvalidArgs, i, err)
		}
		a.Values[i] = bound
	}
	return a, nil
}

func bindValue(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, bool:
		return val, nil
	case json.Number:
		if n, err := val.Int64(); err == nil {
			return n, nil
		}
		return val.Float64()
	default:
		return nil, fmt.Errorf("unsupported value of type %T", v)
	}
}

func (p *SQL) execute(ctx context.Context, args json.RawMessage) (any, error) {
	a, err := decodeQuery(args)
	if err != nil {
		return nil, err
	}
	return p.st.Execute(ctx, a.Query, a.Values...)
}

func (p *SQL) selectRows(ctx context.Context, args json.RawMessage) (any, error) {
	a, err := decodeQuery(args)
	if err != nil {
		return nil, err
	}
	return p.st.Select(ctx, a.Query, a.Values...)
}

func (p *SQL) touch(ctx context.Context, args json.RawMessage) (any, error) {
	path, err := decodePath(args)
	if err != nil {
		return nil, err
	}
	return nil, p.st.TouchRecent(ctx, path, p.now())
}

func (p *SQL) list(ctx context.Context, args json.RawMessage) (any, error) {
	var a struct {
		Limit int `json:"limit"`
	}
	if err := command.DecodeArgs(args, &a); err != nil {
		return nil, err
	}
	return p.st.ListRecent(ctx, a.Limit)
}

func (p *SQL) forget(ctx context.Context, args json.RawMessage) (any, error) {
	path, err := decodePath(args)
	if err != nil {
		return nil, err
	}
	return nil, p.st.ForgetRecent(ctx, path)
}
