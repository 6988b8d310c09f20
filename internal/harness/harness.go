package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"gopkg.in/yaml.v3"

	"github.com/roach88/cohort/internal/ir"
	"github.com/roach88/cohort/internal/queryir"
	"github.com/roach88/cohort/internal/querysql"
	"github.com/roach88/cohort/internal/store"
)

// Runner executes scenarios with one compiler.
type Runner struct {
	compiler *querysql.Compiler
	logger   *slog.Logger
}

// NewRunner creates a Runner. A nil logger discards output.
func NewRunner(c *querysql.Compiler, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Runner{compiler: c, logger: logger}
}

// Run compiles the scenario's request and evaluates its assertions.
//
// Assertion failures are reported in the Result. The error return is
// reserved for problems running the scenario itself, such as fixtures that
// fail to load.
func (r *Runner) Run(ctx context.Context, sc *Scenario) (*Result, error) {
	result := NewResult(sc.Name)

	res, fingerprint, err := r.compile(sc)
	if err != nil {
		var cerr *ir.CompileError
		if !errors.As(err, &cerr) {
			return nil, err
		}
		result.ErrorCode = string(cerr.Code)
		if !expectsError(sc) {
			result.AddError(fmt.Sprintf("compile failed: %v", cerr))
		}
	} else {
		result.SQL = res.SQL
		result.Args = res.Args
		result.Fingerprint = fingerprint
	}

	if result.ErrorCode == "" && needsExecution(sc) {
		n, err := r.execute(ctx, sc, res)
		if err != nil {
			return nil, err
		}
		result.RowCount = &n
	}

	for _, msg := range EvaluateAssertions(sc, result) {
		result.AddError(msg)
	}

	r.logger.Debug("scenario finished",
		"scenario", sc.Name,
		"pass", result.Pass,
		"errors", len(result.Errors))
	return result, nil
}

// RunAll runs scenarios in order.
func (r *Runner) RunAll(ctx context.Context, scenarios []*Scenario) ([]*Result, error) {
	results := make([]*Result, 0, len(scenarios))
	for _, sc := range scenarios {
		res, err := r.Run(ctx, sc)
		if err != nil {
			return results, fmt.Errorf("scenario %s: %w", sc.Name, err)
		}
		results = append(results, res)
	}
	return results, nil
}

func (r *Runner) compile(sc *Scenario) (querysql.Result, string, error) {
	data, err := yaml.Marshal(&sc.Request)
	if err != nil {
		return querysql.Result{}, "", fmt.Errorf("re-encode request: %w", err)
	}
	req, err := queryir.DecodeRequest(data, queryir.FormatYAML)
	if err != nil {
		return querysql.Result{}, "", err
	}
	dialect, err := querysql.DialectByName(sc.Dialect)
	if err != nil {
		return querysql.Result{}, "", err
	}
	mode := querysql.ModeLiteral
	if sc.Parameterized {
		mode = querysql.ModeParameterized
	}
	res, err := r.compiler.CompileRequest(req, mode, dialect)
	if err != nil {
		return querysql.Result{}, "", err
	}
	fp, err := req.Fingerprint()
	if err != nil {
		return querysql.Result{}, "", fmt.Errorf("fingerprint: %w", err)
	}
	return res, fp, nil
}

// execute seeds a fresh in-memory database and counts the statement's rows.
func (r *Runner) execute(ctx context.Context, sc *Scenario, res querysql.Result) (int64, error) {
	st, err := store.Open(":memory:")
	if err != nil {
		return 0, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	if err := st.ExecScript(ctx, sc.Fixtures...); err != nil {
		return 0, fmt.Errorf("fixtures: %w", err)
	}

	cur, err := st.Execute(ctx, res.SQL, res.Args...)
	if err != nil {
		return 0, err
	}
	defer cur.Close()

	var n int64
	for {
		chunk, err := cur.FetchChunk(500)
		if err != nil {
			return 0, err
		}
		if len(chunk) == 0 {
			return n, nil
		}
		n += int64(len(chunk))
	}
}

func expectsError(sc *Scenario) bool {
	for _, a := range sc.Assertions {
		if a.Type == AssertErrorCode {
			return true
		}
	}
	return false
}

func needsExecution(sc *Scenario) bool {
	for _, a := range sc.Assertions {
		if a.Type == AssertRowCount {
			return true
		}
	}
	return false
}
