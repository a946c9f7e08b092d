package server

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/invoice-ocr/constants"
	"github.com/joseph-ayodele/invoice-ocr/internal/batch"
	"github.com/joseph-ayodele/invoice-ocr/internal/common"
	"github.com/joseph-ayodele/invoice-ocr/internal/entity"
	"github.com/joseph-ayodele/invoice-ocr/internal/export"
	"github.com/joseph-ayodele/invoice-ocr/internal/imageproc"
	"github.com/joseph-ayodele/invoice-ocr/internal/manifest"
	"github.com/joseph-ayodele/invoice-ocr/internal/repository"
)

// Backend is what the transport needs from the core service.
type Backend interface {
	Classify(regions []entity.TextRegion) []entity.InvoiceTypeCandidate
	ClassifyText(text string) []entity.InvoiceTypeCandidate
	Recognize(ctx context.Context, data []byte) (*entity.InvoiceRecord, error)
	RecognizeURL(ctx context.Context, url string) (*entity.InvoiceRecord, error)
	RecognizeBatch(ctx context.Context, req batch.Request) (*entity.BatchResult, error)
	BatchStatus(id string) (entity.BatchProgress, error)
	CancelBatch(id string) (bool, error)
	SupportedTypes() []constants.InvoiceType
	Records() repository.RecordRepository
}

type InvoiceOCRService struct {
	backend Backend
	logger  *zap.Logger
}

func NewInvoiceOCRService(backend Backend, logger *zap.Logger) *InvoiceOCRService {
	return &InvoiceOCRService{backend: backend, logger: common.LoggerOrNop(logger)}
}

type classifyRequest struct {
	Text    *string             `json:"text"`
	Regions []entity.TextRegion `json:"regions"`
}

func (s *InvoiceOCRService) Classify(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req classifyRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, common.ToStatus(err)
	}

	var cands []entity.InvoiceTypeCandidate
	switch {
	case req.Regions != nil:
		cands = s.backend.Classify(req.Regions)
	case req.Text != nil:
		cands = s.backend.ClassifyText(*req.Text)
	default:
		return nil, common.InvalidArgumentError("text or regions is required")
	}
	return respond(map[string]any{"candidates": cands})
}

type recognizeRequest struct {
	ImageData string `json:"image_data"`
	ImageURL  string `json:"image_url"`
}

func (s *InvoiceOCRService) Recognize(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req recognizeRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, common.ToStatus(err)
	}

	var (
		rec *entity.InvoiceRecord
		err error
	)
	switch {
	case req.ImageData != "" && req.ImageURL != "":
		return nil, common.InvalidArgumentError("only one of image_data and image_url may be set")
	case req.ImageData != "":
		data, derr := imageproc.DecodeBase64(req.ImageData)
		if derr != nil {
			return nil, common.ToStatus(derr)
		}
		rec, err = s.backend.Recognize(ctx, data)
	case req.ImageURL != "":
		rec, err = s.backend.RecognizeURL(ctx, req.ImageURL)
	default:
		return nil, common.InvalidArgumentError("image_data or image_url is required")
	}
	if err != nil {
		s.logger.Warn("recognize failed", zap.String("code", common.CodeOf(err)), zap.Error(err))
		return nil, common.ToStatus(err)
	}
	return respond(map[string]any{"record": rec})
}

// RecognizeBatch accepts a manifest document whose items carry image_data or
// image_url. Local paths are refused.
func (s *InvoiceOCRService) RecognizeBatch(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	raw, err := rawJSON(in)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	m, err := manifest.Parse(raw)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	for _, it := range m.Items {
		if it.Path != "" {
			return nil, common.InvalidArgumentErrorf("item %s: path is not accepted over the network", it.ID)
		}
	}
	req, err := m.Request()
	if err != nil {
		return nil, common.ToStatus(err)
	}

	res, err := s.backend.RecognizeBatch(ctx, req)
	if err != nil {
		s.logger.Warn("batch failed", zap.String("code", common.CodeOf(err)), zap.Error(err))
		return nil, common.ToStatus(err)
	}
	return respond(res)
}

type batchRef struct {
	BatchID string `json:"batch_id"`
}

func (r batchRef) id() (string, error) {
	id := strings.TrimSpace(r.BatchID)
	if id == "" {
		return "", common.InvalidArgumentError("batch_id is required")
	}
	return id, nil
}

func (s *InvoiceOCRService) BatchStatus(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var ref batchRef
	if err := fromStruct(in, &ref); err != nil {
		return nil, common.ToStatus(err)
	}
	id, err := ref.id()
	if err != nil {
		return nil, err
	}
	p, err := s.backend.BatchStatus(id)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return respond(p)
}

func (s *InvoiceOCRService) CancelBatch(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var ref batchRef
	if err := fromStruct(in, &ref); err != nil {
		return nil, common.ToStatus(err)
	}
	id, err := ref.id()
	if err != nil {
		return nil, err
	}
	ok, err := s.backend.CancelBatch(id)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return respond(map[string]any{"batch_id": id, "cancelled": ok})
}

type invoiceTypeView struct {
	Code     string                `json:"code"`
	Name     string                `json:"name"`
	Fields   []constants.FieldName `json:"fields"`
	Required []constants.FieldName `json:"required"`
}

func (s *InvoiceOCRService) SupportedTypes(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	types := s.backend.SupportedTypes()
	out := make([]invoiceTypeView, 0, len(types))
	for _, t := range types {
		out = append(out, invoiceTypeView{Code: t.Code, Name: t.Name, Fields: t.Fields, Required: t.Required})
	}
	return respond(map[string]any{"types": out})
}

type exportRequest struct {
	BatchID string `json:"batch_id"`
	Limit   int    `json:"limit"`
}

// ExportRecords returns archived records as a base64 XLSX workbook.
func (s *InvoiceOCRService) ExportRecords(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req exportRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, common.ToStatus(err)
	}
	records := s.backend.Records()
	if records == nil {
		return nil, status.Error(codes.FailedPrecondition, "no record store configured")
	}
	data, err := export.NewService(records, s.logger).RecordsXLSX(ctx, strings.TrimSpace(req.BatchID), req.Limit)
	if err != nil {
		s.logger.Warn("export failed", zap.Error(err))
		return nil, common.ToStatus(err)
	}
	name := "invoices.xlsx"
	if req.BatchID != "" {
		name = fmt.Sprintf("invoices_%s.xlsx", req.BatchID)
	}
	return respond(map[string]any{
		"filename": name,
		"xlsx":     base64.StdEncoding.EncodeToString(data),
	})
}

func respond(v any) (*structpb.Struct, error) {
	st, err := toStruct(v)
	if err != nil {
		return nil, common.ToStatus(err)
	}
	return st, nil
}
