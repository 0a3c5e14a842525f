package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/joseph-ayodele/invoice-reader/internal/common"
	"github.com/joseph-ayodele/invoice-reader/internal/entity"
	"github.com/joseph-ayodele/invoice-reader/internal/llm"
)

var ErrEmptySummary = errors.New("summary is empty")

// FieldExtractor asks for a schema-constrained record and validates what comes back.
type FieldExtractor struct {
	model     llm.ChatModel
	schema    map[string]any
	validator *llm.SchemaValidator
	logger    *slog.Logger
}

func NewFieldExtractor(model llm.ChatModel, logger *slog.Logger) (*FieldExtractor, error) {
	if logger == nil {
		logger = slog.Default()
	}
	schema := llm.BuildInvoiceJSONSchema()
	v, err := llm.CompileSchema(schema)
	if err != nil {
		return nil, fmt.Errorf("invoice schema: %w", err)
	}
	return &FieldExtractor{model: model, schema: schema, validator: v, logger: logger}, nil
}

// Extract returns the record and the raw model content. The raw content is
// returned on validation failures too so callers can show it.
func (e *FieldExtractor) Extract(ctx context.Context, summary string) (*entity.InvoiceRecord, []byte, error) {
	start := time.Now()
	if strings.TrimSpace(summary) == "" {
		return nil, nil, common.NewInputError("extract fields", ErrEmptySummary)
	}

	out, err := e.model.Complete(ctx, llm.CompletionRequest{
		Messages:   llm.BuildExtractionMessages(summary),
		Schema:     e.schema,
		SchemaName: llm.InvoiceSchemaName,
	})
	if err != nil {
		e.logger.Error("extract.fields.backend_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		if common.KindOf(err) == nil {
			err = common.NewBackendError("extract fields", err)
		}
		return nil, nil, err
	}

	raw := []byte(llm.StripCodeFences(out.Content))

	cleaned, _, err := llm.SanitizeInvoiceJSON(raw, e.logger)
	if err != nil {
		e.logger.Error("extract.fields.not_json", "error", err, "content", string(raw))
		return nil, raw, common.NewValidationError("model output is not a JSON object", err)
	}

	if err := e.validator.Validate(cleaned); err != nil {
		e.logger.Error("extract.fields.schema_validation_failed",
			"error", err, "content", string(raw),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return nil, raw, common.NewValidationError("schema validation failed", err)
	}

	dec := json.NewDecoder(bytes.NewReader(cleaned))
	dec.DisallowUnknownFields()
	var rec entity.InvoiceRecord
	if err := dec.Decode(&rec); err != nil {
		e.logger.Error("extract.fields.unmarshal_failed", "error", err)
		return nil, raw, common.NewValidationError("decode record", err)
	}

	if err := CheckRecord(&rec); err != nil {
		e.logger.Error("extract.fields.incomplete", "error", err)
		return nil, raw, common.NewValidationError("record incomplete", err)
	}

	e.logger.Info("extract.fields.ok",
		"invoice_id", rec.InvoiceID,
		"total", rec.TotalAmount,
		"line_items", len(rec.OrderDetails),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return &rec, raw, nil
}

// CheckRecord enforces required non-empty strings and finite amounts.
func CheckRecord(rec *entity.InvoiceRecord) error {
	if rec == nil {
		return errors.New("record is nil")
	}
	v := common.NewValidator()
	v.Field(entity.ColInvoiceID, rec.InvoiceID, common.Required)
	v.Field(entity.ColDateTime, rec.DateTime, common.Required)
	v.Field(entity.ColReceiver, rec.Receiver, common.Required)
	v.Field(entity.ColTaxes, rec.Taxes, common.Finite)
	v.Field(entity.ColDeliveryCharge, rec.DeliveryCharge, common.Finite)
	v.Field(entity.ColPlatformFee, rec.PlatformFee, common.Finite)
	v.Field(entity.ColTotalAmount, rec.TotalAmount, common.Finite)
	if rec.OrderDetails == nil {
		v.Field(entity.ColOrderDetails, nil, common.Required)
	}
	return v.Error()
}
