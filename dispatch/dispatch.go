package dispatch

import (
	"context"
	"errors"
	"strconv"

	"github.com/jonwraymond/erpgate/cache"
	"github.com/jonwraymond/erpgate/connector"
	"github.com/jonwraymond/erpgate/encode"
	"github.com/jonwraymond/erpgate/observe"
	"github.com/jonwraymond/erpgate/registry"
	"github.com/jonwraymond/erpgate/toolerr"
)

// Backend performs one logical backend call. *connector.Connector
// implements it.
type Backend interface {
	Call(ctx context.Context, req connector.Request) ([]byte, error)
}

// Result is the outcome of a successful dispatch.
type Result struct {
	Tool string

	// Response carries the encoded payload and its metadata.
	Response encode.Response

	// Cached reports whether the data came from the cache.
	Cached bool

	// Invalidated is the number of cache keys purged by a write.
	Invalidated int

	CorrelationID string
}

// Dispatcher executes registered tools.
//
// Contract:
//   - Concurrency: safe for concurrent use. Its only shared mutable state
//     lives in the cache manager.
//   - Errors: Dispatch returns nil or a *toolerr.Error carrying the request's
//     correlation id, never anything else.
//   - Context: cancellation aborts the backend call; nothing is cached for
//     an aborted read.
type Dispatcher struct {
	registry *registry.Registry
	cache    *cache.Manager
	backend  Backend
	encoder  *encode.Encoder
	logger   observe.Logger
	exec     observe.ExecuteFunc
}

// Option configures a Dispatcher.
type Option func(*dispatcherOptions)

type dispatcherOptions struct {
	middleware *observe.Middleware
	logger     observe.Logger
}

// WithMiddleware wraps every call with tracing, call metrics and a
// completion log line.
func WithMiddleware(mw *observe.Middleware) Option {
	return func(o *dispatcherOptions) { o.middleware = mw }
}

// WithLogger sets the logger for invalidation and encoding events.
func WithLogger(l observe.Logger) Option {
	return func(o *dispatcherOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// New assembles a Dispatcher. A nil cache manager disables caching and a
// nil encoder uses the tabular default.
func New(reg *registry.Registry, cm *cache.Manager, backend Backend, enc *encode.Encoder, opts ...Option) *Dispatcher {
	o := dispatcherOptions{logger: observe.NopLogger()}
	for _, opt := range opts {
		opt(&o)
	}
	if cm == nil {
		cm = cache.NewManager(nil, cache.DefaultPolicy())
	}
	if enc == nil {
		enc = encode.NewEncoder(encode.FormatTabular)
	}
	d := &Dispatcher{
		registry: reg,
		cache:    cm,
		backend:  backend,
		encoder:  enc,
		logger:   o.logger,
	}
	d.exec = d.execute
	if o.middleware != nil {
		d.exec = o.middleware.Wrap(d.execute)
	}
	return d
}

// Registry returns the tool registry.
func (d *Dispatcher) Registry() *registry.Registry { return d.registry }

// Cache returns the cache manager.
func (d *Dispatcher) Cache() *cache.Manager { return d.cache }

// Dispatch runs tool with args: validate, consult the cache for reads, call
// the backend, invalidate after writes, encode.
func (d *Dispatcher) Dispatch(ctx context.Context, tool string, args map[string]any) (*Result, error) {
	id := observe.CorrelationID(ctx)
	if id == "" {
		id = toolerr.NewCorrelationID()
		ctx = observe.WithCorrelationID(ctx, id)
	}
	ctx = cache.WithRequest(ctx)

	meta := observe.CallMeta{Tool: tool}
	if desc, ok := d.registry.Lookup(tool); ok {
		meta.Entity = desc.Entity
		meta.Kind = string(desc.Kind)
	}

	out, err := d.exec(ctx, meta, args)
	if err != nil {
		// Coalesced reads hand the same error to every waiter.
		return nil, toolerr.From(err).WithCorrelationID(id)
	}
	res, ok := out.(*Result)
	if !ok {
		return nil, toolerr.Internal().WithCorrelationID(id)
	}
	res.CorrelationID = id
	return res, nil
}

func (d *Dispatcher) execute(ctx context.Context, meta observe.CallMeta, args map[string]any) (any, error) {
	desc, ok := d.registry.Lookup(meta.Tool)
	if !ok {
		return nil, toolerr.Validation("unknown tool: "+meta.Tool, nil,
			[]toolerr.FieldError{{Field: "tool", Reason: "not registered"}})
	}

	b, err := desc.Bind(args)
	if err != nil {
		return nil, err
	}
	format, err := d.format(b.Format)
	if err != nil {
		return nil, err
	}

	res := &Result{Tool: desc.Name}
	var data []byte
	if b.Write {
		data, err = d.write(ctx, desc, b)
		if err == nil {
			res.Invalidated = d.invalidate(ctx, desc, b)
		}
	} else {
		data, res.Cached, err = d.read(ctx, desc, b)
	}
	if err != nil {
		return nil, err
	}

	resp, err := d.encoder.Encode(data, format)
	if err != nil {
		return nil, err
	}
	if desc.Paginated && truncated(resp.Rows, b.Args) {
		resp.Truncated = true
	}
	res.Response = resp
	return res, nil
}

func (d *Dispatcher) format(requested string) (encode.Format, error) {
	if requested == "" {
		return d.encoder.DefaultFormat(), nil
	}
	f, err := encode.ParseFormat(requested)
	if err != nil {
		return "", toolerr.Validation("", nil, []toolerr.FieldError{
			{Field: registry.ArgFormat, Reason: "unsupported format"},
		})
	}
	return f, nil
}

// read serves a read through the cache.
func (d *Dispatcher) read(ctx context.Context, desc *registry.Descriptor, b *registry.Bound) ([]byte, bool, error) {
	load := func(ctx context.Context) ([]byte, error) {
		return d.load(ctx, desc, b)
	}
	if desc.NoCache || desc.Raw || !d.cache.Cacheable(b.Entity) {
		data, err := load(ctx)
		return data, false, err
	}

	scope := cache.Scope{Param: b.ScopeParam, Value: b.ScopeValue}
	key, err := d.cache.Key(b.Entity, desc.Op(), scope, b.Args)
	if err != nil {
		d.logger.Warn(ctx, "cache key rejected",
			observe.Field{Key: "tool", Value: desc.Name},
			observe.Field{Key: "error", Value: err},
		)
		data, err := load(ctx)
		return data, false, err
	}
	return d.cache.Fetch(ctx, b.Entity, key, load)
}

// load calls the backend and shapes the payload into the cached form.
func (d *Dispatcher) load(ctx context.Context, desc *registry.Descriptor, b *registry.Bound) ([]byte, error) {
	data, err := d.backend.Call(ctx, request(b))
	if err != nil {
		if desc.EmptyOnNotFound && isNotFound(err) {
			data = []byte("[]")
		} else {
			return nil, err
		}
	}
	if data, err = desc.Projection.Apply(data); err != nil {
		return nil, err
	}
	return desc.Shape(data, b.Args)
}

func (d *Dispatcher) write(ctx context.Context, desc *registry.Descriptor, b *registry.Bound) ([]byte, error) {
	data, err := d.backend.Call(ctx, request(b))
	if err != nil {
		return nil, err
	}
	return desc.Shape(data, b.Args)
}

// invalidate purges the written entity, its aggregate group and its
// dependents. It runs to completion even when the caller has gone away,
// because the backend already committed the write.
func (d *Dispatcher) invalidate(ctx context.Context, desc *registry.Descriptor, b *registry.Bound) int {
	ctx = context.WithoutCancel(ctx)

	n := 0
	if b.ScopeParam != "" {
		n += d.cache.InvalidateScope(ctx, b.Entity, cache.Scope{Param: b.ScopeParam, Value: b.ScopeValue})
	}
	// Raw calls to resources outside the catalog keep the descriptor's
	// placeholder entity, which tags nothing.
	if !desc.Raw || b.Entity != desc.Entity {
		n += d.cache.Invalidate(ctx, b.Entity)
	}
	for _, e := range desc.Invalidates {
		n += d.cache.Invalidate(ctx, e)
	}
	return n
}

func request(b *registry.Bound) connector.Request {
	return connector.Request{
		Method: b.Method,
		Path:   b.Path,
		Query:  b.Query,
		Body:   b.Body,
		Entity: b.Entity,
		ID:     b.ID,
	}
}

func isNotFound(err error) bool {
	var te *toolerr.Error
	return errors.As(err, &te) && te.Kind == toolerr.KindNotFound
}

// truncated reports whether a page came back full, which means the
// backend may hold more rows.
func truncated(rows int, args map[string]any) bool {
	var limit int64
	switch v := args["limit"].(type) {
	case int64:
		limit = v
	case string:
		limit, _ = strconv.ParseInt(v, 10, 64)
	}
	return limit > 0 && int64(rows) >= limit
}
