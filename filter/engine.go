package filter

import (
	"fmt"
	"io"
	"log/slog"
)

type engineConfig struct {
	checker      AuthorizationChecker
	config       Config
	transformers map[string]NodeTransformer
	logger       *slog.Logger
	options      CompileOptions
}

// EngineOption customizes Engine construction.
type EngineOption func(*engineConfig)

// WithAuthorizationChecker gates fields and associations at LevelAll.
// Without a checker only the public flags are enforced.
func WithAuthorizationChecker(checker AuthorizationChecker) EngineOption {
	return func(cfg *engineConfig) {
		cfg.checker = checker
	}
}

// WithConfig replaces the operator and input tables.
func WithConfig(c Config) EngineOption {
	return func(cfg *engineConfig) {
		cfg.config = c.clone()
	}
}

// WithTypeOperators overrides the operators allowed for one field type.
func WithTypeOperators(t FieldType, ops ...Operator) EngineOption {
	return func(cfg *engineConfig) {
		cfg.config.TypeOperators[t] = append([]Operator(nil), ops...)
	}
}

// WithInputType overrides the input type reported for one field type.
func WithInputType(t FieldType, in InputType) EngineOption {
	return func(cfg *engineConfig) {
		cfg.config.InputTypes[t] = in
	}
}

// WithTransformer registers a NodeTransformer referenced by Field.Transformer.
func WithTransformer(name string, t NodeTransformer) EngineOption {
	return func(cfg *engineConfig) {
		if t == nil {
			return
		}
		cfg.transformers[name] = t
	}
}

// WithLogger sets the logger used for debug output. Defaults to a discarding logger.
func WithLogger(logger *slog.Logger) EngineOption {
	return func(cfg *engineConfig) {
		if logger != nil {
			cfg.logger = logger
		}
	}
}

// WithTranslations resolves translatable fields in the given locale.
func WithTranslations(locale string) EngineOption {
	return func(cfg *engineConfig) {
		cfg.options = CompileOptions{Translatable: locale != "", Locale: locale}
	}
}

// Engine validates and compiles filter trees against a metadata oracle.
// It is safe for concurrent use.
type Engine struct {
	oracle       MetadataOracle
	checker      AuthorizationChecker
	config       Config
	transformers map[string]NodeTransformer
	constraints  *constraintSet
	logger       *slog.Logger
	options      CompileOptions
}

// NewEngine builds an Engine reading metadata from oracle.
func NewEngine(oracle MetadataOracle, opts ...EngineOption) (*Engine, error) {
	if oracle == nil {
		return nil, fmt.Errorf("filter: metadata oracle is required")
	}
	cfg := &engineConfig{
		config:       DefaultConfig().clone(),
		transformers: map[string]NodeTransformer{},
		logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(cfg)
	}

	constraints, err := newConstraintSet()
	if err != nil {
		return nil, err
	}
	return &Engine{
		oracle:       oracle,
		checker:      cfg.checker,
		config:       cfg.config,
		transformers: cfg.transformers,
		constraints:  constraints,
		logger:       cfg.logger,
		options:      cfg.options,
	}, nil
}

// Config returns a copy of the engine's operator and input tables.
func (e *Engine) Config() Config {
	return e.config.clone()
}

// Oracle returns the metadata oracle.
func (e *Engine) Oracle() MetadataOracle {
	return e.oracle
}

// WithOptions returns a shallow copy of the engine using different compile
// options, e.g. a per-request locale.
func (e *Engine) WithOptions(opts CompileOptions) *Engine {
	clone := *e
	clone.options = opts
	return &clone
}

// WithChecker returns a shallow copy of the engine gating fields with
// checker, e.g. one built for the roles of the current request.
func (e *Engine) WithChecker(checker AuthorizationChecker) *Engine {
	clone := *e
	clone.checker = checker
	return &clone
}

// Validate checks a tree against q's entity. Existing joins of q are reused
// by the join plan. Errors are returned only for infrastructure failures;
// semantic problems are recorded on the Result.
func (e *Engine) Validate(node Node, q *Query, level Level) (*Result, error) {
	if node == nil {
		return nil, fmt.Errorf("filter: node is nil")
	}
	meta, err := e.oracle.Metadata(q.Entity)
	if err != nil {
		return nil, fmt.Errorf("filter: metadata for %q: %w", q.Entity, err)
	}

	v := &validator{
		engine:  e,
		level:   level,
		options: e.options,
		result:  newResult(node),
		planner: newJoinPlanner(q.Alias, q.knownJoins()),
	}
	if !meta.Filterable {
		v.result.addError(node, newNodeError("", `The object "{{ entity }}" is not filterable.`, map[string]any{"entity": meta.Name}))
		return v.result, nil
	}
	if err := v.walk(node, meta, q.Alias, "", true); err != nil {
		return nil, err
	}
	v.result.joins = v.planner.planned
	return v.result, nil
}

// Compiled is the outcome of compiling a tree against a query.
type Compiled struct {
	Result *Result
	// Where is nil when the tree is invalid or nothing survived validation.
	Where  Predicate
	Joins  []Join
	Params []Parameter
}

// Denied reports whether the tree must narrow the query to nothing.
func (c *Compiled) Denied() bool {
	return !c.Result.Valid() || c.Where == nil
}

// DQL renders the predicate with named `:pN` parameters.
func (c *Compiled) DQL() (string, error) {
	stmt, err := Render(c.Where, c.Params, RenderOptions{Dialect: DialectDQL})
	if err != nil {
		return "", err
	}
	return stmt.SQL, nil
}

// Compile validates and compiles a tree. Parameters are numbered after the
// ones already bound or pending on q; q itself is not modified.
func (e *Engine) Compile(node Node, q *Query, level Level) (*Compiled, error) {
	binder := NewBinder(q.nextParamOffset())
	c, err := e.compile(node, q, level, binder)
	if err != nil {
		return nil, err
	}
	c.Params = binder.Params()
	return c, nil
}

func (e *Engine) compile(node Node, q *Query, level Level, binder ParameterBinder) (*Compiled, error) {
	res, err := e.Validate(node, q, level)
	if err != nil {
		return nil, err
	}
	c := &Compiled{Result: res}
	if !res.Valid() {
		return c, nil
	}

	meta, err := e.oracle.Metadata(q.Entity)
	if err != nil {
		return nil, fmt.Errorf("filter: metadata for %q: %w", q.Entity, err)
	}
	args := &CompileArgs{
		Binder:   binder,
		Metadata: meta,
		Alias:    q.Alias,
		Joins:    res.Joins(),
		Result:   res,
		Options:  e.options,
	}
	where, err := Compile(node, args)
	if err != nil {
		return nil, err
	}
	if where == nil {
		return c, nil
	}
	c.Where = where
	c.Joins = args.Joins
	return c, nil
}

// Apply parses raw (a bare rule is wrapped in AND), validates it and
// records its predicate and joins as a pending merge on q. An invalid or
// fully elided tree records `alias.id IS NULL` instead. Structural errors
// are returned as *ParseError.
func (e *Engine) Apply(q *Query, raw any, level Level) (*Result, error) {
	node, err := Parse(raw, true)
	if err != nil {
		return nil, err
	}
	return e.ApplyNode(q, node, level)
}

// ApplyNode is Apply for an already parsed tree.
func (e *Engine) ApplyNode(q *Query, node Node, level Level) (*Result, error) {
	scratch := q.Scratch()
	c, err := e.compile(node, q, level, scratch)
	if err != nil {
		return nil, err
	}
	if c.Denied() {
		e.logger.Debug("filter denied", "entity", q.Entity, "errors", len(c.Result.Errors()))
		if err := e.Deny(q); err != nil {
			return nil, err
		}
		return c.Result, nil
	}

	scratch.Where = c.Where
	scratch.Joins = c.Joins
	q.AddMerge(scratch)
	return c.Result, nil
}

// Deny records a predicate selecting nothing on q: `alias.<identifier> IS NULL`.
func (e *Engine) Deny(q *Query) error {
	meta, err := e.oracle.Metadata(q.Entity)
	if err != nil {
		return fmt.Errorf("filter: metadata for %q: %w", q.Entity, err)
	}
	scratch := q.Scratch()
	scratch.Where = &Null{Left: Column{Alias: q.Alias, Name: meta.IdentifierColumn()}}
	q.AddMerge(scratch)
	return nil
}

// ApplyJSON is Apply for filter JSON text.
func (e *Engine) ApplyJSON(q *Query, data []byte, level Level) (*Result, error) {
	node, err := ParseJSON(data, true)
	if err != nil {
		return nil, err
	}
	return e.ApplyNode(q, node, level)
}
