package solvers

import (
	"strings"

	"github.com/goliatone/go-provision/logger"
	opts "github.com/goliatone/go-options"
	"github.com/knadh/koanf/v2"
)

const (
	defaultExpressionStart = "{{"
	defaultExpressionEnd   = "}}"
)

// EvalErrorHandler is called when an expression fails to evaluate.
// Return true to mark the error as handled.
type EvalErrorHandler func(key string, expr string, err error, cfg *koanf.Koanf) bool

type expression struct {
	delimiters *delimiters
	evaluator  opts.Evaluator
	onError    EvalErrorHandler
}

// NewExpressionSolver evaluates values wrapped by delimiters (default {{ }}) with the
// expr evaluator, e.g. install: "{{ environment == \"ci\" ? false : true }}".
func NewExpressionSolver(start, end string) ConfigSolver {
	return NewExpressionSolverWithEvaluator(start, end, nil, nil)
}

// NewExpressionSolverWithEvaluator allows a custom evaluator and error handler.
func NewExpressionSolverWithEvaluator(start, end string, eval opts.Evaluator, onErr EvalErrorHandler) ConfigSolver {
	if eval == nil {
		eval = opts.NewExprEvaluator()
	}
	if onErr == nil {
		onErr = OnEvalLeaveUnchanged()
	}
	start, end = normalizeExpressionDelimiters(start, end)

	return &expression{
		delimiters: &delimiters{Start: start, End: end},
		evaluator:  eval,
		onError:    onErr,
	}
}

func (s expression) Solve(config *koanf.Koanf) *koanf.Koanf {
	if config == nil {
		return config
	}

	for _, e := range stringEntries(config) {
		expr, ok := s.fullMatch(e.value)
		if !ok {
			continue
		}

		expr = strings.TrimSpace(expr)
		result, err := s.evaluator.Evaluate(opts.RuleContext{Snapshot: config.Raw()}, expr)
		if err != nil {
			s.onError(e.key, expr, err, config)
			continue
		}

		config.Set(e.key, result)
	}

	return config
}

func (s expression) fullMatch(input string) (string, bool) {
	if !strings.HasPrefix(input, s.delimiters.Start) || !strings.HasSuffix(input, s.delimiters.End) {
		return "", false
	}

	start := len(s.delimiters.Start)
	end := len(input) - len(s.delimiters.End)
	if end < start {
		return "", false
	}
	return input[start:end], true
}

func normalizeExpressionDelimiters(start, end string) (string, string) {
	if start == "" {
		start = defaultExpressionStart
	}
	if end == "" {
		end = defaultExpressionEnd
	}
	return start, end
}

// OnEvalLogAndPanic logs the error then panics.
func OnEvalLogAndPanic(l logger.Logger) EvalErrorHandler {
	if l == nil {
		l = logger.NewDefaultLogger("solvers")
	}
	return func(key string, expr string, err error, _ *koanf.Koanf) bool {
		l.Error("expression evaluation failed for %s: %s (%v)", key, expr, err)
		panic(err)
	}
}

// OnEvalLog logs the error and keeps the original value.
func OnEvalLog(l logger.Logger) EvalErrorHandler {
	if l == nil {
		l = logger.Nop()
	}
	return func(key string, expr string, err error, _ *koanf.Koanf) bool {
		l.Warn("expression evaluation failed for %s: %s (%v)", key, expr, err)
		return true
	}
}

// OnEvalLeaveUnchanged keeps the original value.
func OnEvalLeaveUnchanged() EvalErrorHandler {
	return func(_ string, _ string, _ error, _ *koanf.Koanf) bool {
		return true
	}
}

// OnEvalRemove deletes the key from the config.
func OnEvalRemove() EvalErrorHandler {
	return func(key string, _ string, _ error, cfg *koanf.Koanf) bool {
		if cfg != nil {
			cfg.Delete(key)
		}
		return true
	}
}
