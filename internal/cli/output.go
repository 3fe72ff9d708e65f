package cli

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/aretw0/arbor/internal/presentation/tui"
	"github.com/aretw0/arbor/internal/runtime"
	"github.com/aretw0/arbor/internal/validator"
	"github.com/aretw0/arbor/pkg/domain"
)

// ErrInvalidModel is returned when validation finds problems. The report
// has already been printed.
var ErrInvalidModel = errors.New("model has validation errors")

type runOutput struct {
	*runtime.Result
	ICER []runtime.ICER `json:"icer,omitempty"`
}

type psaOutput struct {
	Model      string                  `json:"model"`
	Iterations int                     `json:"iterations"`
	Summary    []runtime.BranchSummary `json:"summary"`
}

type validateOutput struct {
	Model   string            `json:"model"`
	Checked bool              `json:"checked"`
	Errors  []validator.Issue `json:"errors,omitempty"`
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeMarkdown(w io.Writer, md string) error {
	return tui.NewPrinter(w, true).Print(md)
}

func writeResult(opts Options, m *domain.Model, res *runtime.Result) error {
	var icers []runtime.ICER
	if m.Dimensions.AnalysisType != domain.AnalysisEV {
		var err error
		if icers, err = res.CEA(m.Dimensions); err != nil {
			return err
		}
	}
	if opts.JSON {
		return writeJSON(opts.out(), runOutput{Result: res, ICER: icers})
	}
	return writeMarkdown(opts.out(), tui.ResultReport(m, res, icers))
}

func writePSA(opts Options, m *domain.Model, its []runtime.IterationResult) error {
	summary := runtime.Summarize(its)
	if opts.JSON {
		return writeJSON(opts.out(), psaOutput{Model: m.Name, Iterations: len(its), Summary: summary})
	}
	return writeMarkdown(opts.out(), tui.PSAReport(m, len(its), summary))
}

// writeValidation prints the report and returns ErrInvalidModel when it
// holds errors.
func writeValidation(opts Options, m *domain.Model, report *validator.Report) error {
	var err error
	if opts.JSON {
		err = writeJSON(opts.out(), validateOutput{Model: m.Name, Checked: report.Checked(), Errors: report.Errors})
	} else {
		err = writeMarkdown(opts.out(), tui.ValidationReport(m.Name, report))
	}
	if err != nil {
		return err
	}
	if !report.Checked() {
		return ErrInvalidModel
	}
	return nil
}
