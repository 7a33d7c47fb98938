package service

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
)

// ReportService exports an instance's approval history as an Excel workbook
// for finance archiving.
type ReportService interface {
	BuildHistoryWorkbook(ctx context.Context, instanceID int64) (*bytes.Buffer, string, error)
}

type reportServiceImpl struct {
	workflowSvc WorkflowService
	logger      Logger
}

// NewReportService creates a new ReportService.
func NewReportService(workflowSvc WorkflowService, logger Logger) ReportService {
	return &reportServiceImpl{
		workflowSvc: workflowSvc,
		logger:      logger,
	}
}

const historySheet = "Approval History"

// BuildHistoryWorkbook renders the progress log of one instance into an
// .xlsx workbook. Returns the serialized workbook and a suggested filename.
func (s *reportServiceImpl) BuildHistoryWorkbook(ctx context.Context, instanceID int64) (*bytes.Buffer, string, error) {
	history, err := s.workflowSvc.GetHistory(ctx, instanceID)
	if err != nil {
		return nil, "", err
	}

	f := excelize.NewFile()
	defer f.Close()

	index, err := f.NewSheet(historySheet)
	if err != nil {
		return nil, "", fmt.Errorf("create sheet: %w", err)
	}
	f.SetActiveSheet(index)
	f.DeleteSheet("Sheet1")

	inst := history.Instance
	setCell(f, "A1", "Workflow instance")
	setCell(f, "B1", inst.PublicID)
	setCell(f, "A2", "Payment")
	setCell(f, "B2", inst.PaymentID)
	setCell(f, "A3", "Status")
	setCell(f, "B3", inst.Status)
	setCell(f, "A4", "Amount")
	setCell(f, "B4", fmt.Sprintf("%.2f", float64(inst.AmountCents)/100))
	setCell(f, "A5", "Started")
	setCell(f, "B5", inst.StartedAt.Format(time.RFC3339))
	if inst.CompletedAt != nil {
		setCell(f, "A6", "Completed")
		setCell(f, "B6", inst.CompletedAt.Format(time.RFC3339))
	}

	headerRow := 8
	headers := []string{"Stage", "Action", "Decided by", "Email", "Note", "Timestamp"}
	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, headerRow)
		setCell(f, cell, h)
	}

	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		first, _ := excelize.CoordinatesToCellName(1, headerRow)
		last, _ := excelize.CoordinatesToCellName(len(headers), headerRow)
		_ = f.SetCellStyle(historySheet, first, last, style)
	}

	for i, entry := range history.Progress {
		row := headerRow + 1 + i
		values := []interface{}{
			entry.StageName,
			entry.Action,
			entry.UserName,
			entry.UserEmail,
			entry.Note,
			entry.CreatedAt.Format(time.RFC3339),
		}
		for col, v := range values {
			cell, _ := excelize.CoordinatesToCellName(col+1, row)
			setCell(f, cell, v)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, "", fmt.Errorf("serialize workbook: %w", err)
	}

	filename := fmt.Sprintf("approval-history-%s.xlsx", inst.PublicID)
	s.logger.Info("History workbook built", "instance_id", instanceID, "entries", len(history.Progress))
	return buf, filename, nil
}

func setCell(f *excelize.File, cell string, value interface{}) {
	_ = f.SetCellValue(historySheet, cell, value)
}
