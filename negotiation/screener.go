package negotiation

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"path/filepath"

	"procureagent"
)

// Screener decides per vendor whether it can fulfil the order.
type Screener struct {
	capability procureagent.Capability
	documents  procureagent.DocumentSource
}

// NewScreener builds a screener. documents may be nil, in which case vendors are judged
// on their directory description alone.
func NewScreener(capability procureagent.Capability, documents procureagent.DocumentSource) *Screener {
	return &Screener{capability: capability, documents: documents}
}

// Screen never returns an error: any failure marks the vendor unsuitable and is recorded
// in the result.
func (s *Screener) Screen(ctx context.Context, vendor procureagent.Vendor, order procureagent.OrderRequirement) procureagent.ScreeningResult {
	docs := s.loadDocuments(ctx, vendor)

	slog.Info("SCREENER: evaluating vendor", "vendor", vendor.Name, "vendor_id", vendor.ID, "documents", len(docs))

	match, err := s.capability.MatchVendor(ctx, procureagent.MatchRequest{
		Vendor:    vendor,
		Order:     order,
		Documents: docs,
	})
	if err != nil {
		slog.Warn("SCREENER: match failed, marking unsuitable", "vendor_id", vendor.ID, "error", err)
		return ScreeningFailed(vendor, err)
	}

	slog.Info("SCREENER: verdict", "vendor_id", vendor.ID, "suitable", match.Suitable, "product_id", match.ProductID)

	result := procureagent.ScreeningResult{
		VendorID:  vendor.ID,
		Suitable:  match.Suitable,
		Reasoning: match.Reasoning,
	}
	if match.Suitable {
		result.MatchedProductID = match.ProductID
	}
	return result
}

// ScreeningFailed is the verdict for a vendor whose screening could not complete.
func ScreeningFailed(vendor procureagent.Vendor, err error) procureagent.ScreeningResult {
	return procureagent.ScreeningResult{
		VendorID:  vendor.ID,
		Suitable:  false,
		Reasoning: fmt.Sprintf("screening failed: %v", err),
		Err:       err.Error(),
	}
}

func (s *Screener) loadDocuments(ctx context.Context, vendor procureagent.Vendor) []procureagent.Document {
	if s.documents == nil || len(vendor.Documents) == 0 {
		return nil
	}

	var docs []procureagent.Document
	for _, ref := range vendor.Documents {
		data, err := s.documents.Load(ctx, ref.Filename)
		if err != nil {
			slog.Warn("SCREENER: skipping vendor document", "vendor_id", vendor.ID, "file", ref.Filename, "error", err)
			continue
		}
		docs = append(docs, procureagent.Document{
			Filename:  ref.Filename,
			MediaType: mediaType(ref),
			Data:      data,
		})
	}
	return docs
}

func mediaType(ref procureagent.DocumentRef) string {
	if ref.MediaType != "" {
		return ref.MediaType
	}
	if t := mime.TypeByExtension(filepath.Ext(ref.Filename)); t != "" {
		return t
	}
	return "application/octet-stream"
}
