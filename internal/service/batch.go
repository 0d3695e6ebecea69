package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/UnknownOlympus/coordtrans/internal/apperr"
	"github.com/UnknownOlympus/coordtrans/internal/export"
	"github.com/UnknownOlympus/coordtrans/internal/models"
	"github.com/UnknownOlympus/coordtrans/internal/spreadsheet"
	"github.com/UnknownOlympus/coordtrans/internal/validation"
)

// BatchLimits bounds a single upload.
type BatchLimits struct {
	MaxRows       int   // maximum data rows, 0 disables the check
	MaxUploadSize int64 // maximum upload bytes, 0 disables the check
}

// Report is the result of one processed upload.
type Report struct {
	File     []byte // xlsx workbook
	Filename string
	Total    int
	Failed   int
}

// BatchService runs the upload pipeline: parse, validate, execute and export.
type BatchService struct {
	log       *slog.Logger
	executor  *Executor
	validator *validation.Validator
	limits    BatchLimits
}

// NewBatchService creates a new BatchService.
func NewBatchService(
	log *slog.Logger,
	executor *Executor,
	validator *validation.Validator,
	limits BatchLimits,
) *BatchService {
	return &BatchService{
		log:       log,
		executor:  executor,
		validator: validator,
		limits:    limits,
	}
}

// Process turns an uploaded file into a result workbook.
//
// Request-level problems (unsupported or unreadable file, too many rows, no usable
// columns) return an *apperr.Error and no report. Row-level problems never fail the
// request; they end up in the error column of the workbook.
func (bs *BatchService) Process(
	ctx context.Context,
	kind models.QueryKind,
	filename string,
	data []byte,
	progress chan<- Progress,
) (*Report, error) {
	const op = "process batch"

	table, err := spreadsheet.Read(filename, data, bs.limits.MaxUploadSize)
	if err != nil {
		return nil, err
	}

	if bs.limits.MaxRows > 0 && len(table.Rows) > bs.limits.MaxRows {
		return nil, apperr.Capacity(
			fmt.Sprintf("too many rows: %d, maximum is %d", len(table.Rows), bs.limits.MaxRows)).WithOp(op)
	}

	mapping, err := validation.DetectColumns(table.Header, kind)
	if err != nil {
		return nil, err
	}

	rows := make([]models.Row, len(table.Rows))
	for idx, values := range table.Rows {
		rows[idx] = bs.validator.Row(idx, values, mapping)
	}

	bs.log.InfoContext(ctx, "Processing upload", "file", filename, "kind", kind.String(), "rows", len(rows))

	outcome := bs.executor.Run(ctx, kind, rows, progress)

	file, err := export.Export(table.Header, outcome, kind)
	if err != nil {
		return nil, err
	}

	return &Report{
		File:     file,
		Filename: export.Filename(kind),
		Total:    len(outcome),
		Failed:   outcome.Failed(),
	}, nil
}
