package dto

import (
	"time"

	"facturio/internal/core/apperror"
	"facturio/internal/core/id"
	"facturio/internal/core/types"
	"facturio/internal/domain/document"
	"facturio/internal/domain/totals"
)

// LineRequest is one billable position of a create/update request.
type LineRequest struct {
	Description string       `json:"description" binding:"required"`
	Quantity    types.Money  `json:"quantity"`
	UnitPrice   types.Money  `json:"unitPrice"`
	TaxRate     *types.Money `json:"taxRate,omitempty"`
}

// DiscountRequest describes a document-level discount.
type DiscountRequest struct {
	Type  totals.DiscountType `json:"type" binding:"required"`
	Value types.Money         `json:"value"`
}

// CreateDocumentRequest for creating documents.
type CreateDocumentRequest struct {
	ClientID  string           `json:"clientId" binding:"required"`
	Kind      string           `json:"kind" binding:"required"`
	IssueDate *time.Time       `json:"issueDate,omitempty"`
	DueDate   *time.Time       `json:"dueDate,omitempty"`
	TaxRate   *types.Money     `json:"taxRate,omitempty"`
	Discount  *DiscountRequest `json:"discount,omitempty"`
	Deposit   *types.Money     `json:"deposit,omitempty"`
	Notes     string           `json:"notes,omitempty"`
	Lines     []LineRequest    `json:"lines"`
}

// ToDocument builds a draft document owned by userID.
func (r *CreateDocumentRequest) ToDocument(userID id.ID) (*document.Document, error) {
	kind, err := document.ParseKind(r.Kind)
	if err != nil {
		return nil, err
	}
	clientID, err := id.Parse(r.ClientID)
	if err != nil {
		return nil, apperror.NewValidation("invalid client id").WithDetail("field", "clientId")
	}

	doc := document.New(userID, clientID, kind)
	if r.IssueDate != nil {
		doc.IssueDate = *r.IssueDate
	}
	doc.DueDate = r.DueDate
	doc.TaxRate = r.TaxRate
	doc.Notes = r.Notes
	if r.Discount != nil {
		t := r.Discount.Type
		v := r.Discount.Value
		doc.DiscountType = &t
		doc.DiscountValue = &v
	}
	if r.Deposit != nil {
		doc.DepositApplied = *r.Deposit
	}
	for _, line := range r.Lines {
		doc.AddLine(line.Description, line.Quantity, line.UnitPrice, line.TaxRate)
	}
	return doc, nil
}

// UpdateDocumentRequest replaces the content of a draft document.
type UpdateDocumentRequest struct {
	IssueDate *time.Time       `json:"issueDate,omitempty"`
	DueDate   *time.Time       `json:"dueDate,omitempty"`
	TaxRate   *types.Money     `json:"taxRate,omitempty"`
	Discount  *DiscountRequest `json:"discount,omitempty"`
	Deposit   *types.Money     `json:"deposit,omitempty"`
	Notes     *string          `json:"notes,omitempty"`
	Lines     []LineRequest    `json:"lines"`
	Version   int              `json:"version" binding:"required,min=1"`
}

// Apply merges the request into an existing document.
func (r *UpdateDocumentRequest) Apply(doc *document.Document) {
	if r.IssueDate != nil {
		doc.IssueDate = *r.IssueDate
	}
	doc.DueDate = r.DueDate
	doc.TaxRate = r.TaxRate
	if r.Discount != nil {
		t := r.Discount.Type
		v := r.Discount.Value
		doc.DiscountType = &t
		doc.DiscountValue = &v
	} else {
		doc.DiscountType = nil
		doc.DiscountValue = nil
	}
	if r.Deposit != nil {
		doc.DepositApplied = *r.Deposit
	} else {
		doc.DepositApplied = types.Zero()
	}
	if r.Notes != nil {
		doc.Notes = *r.Notes
	}
	doc.Lines = doc.Lines[:0]
	for _, line := range r.Lines {
		doc.AddLine(line.Description, line.Quantity, line.UnitPrice, line.TaxRate)
	}
	doc.Version = r.Version
}

// LineResponse is one line of a document response.
type LineResponse struct {
	LineID      string       `json:"lineId"`
	LineNo      int          `json:"lineNo"`
	Description string       `json:"description"`
	Quantity    types.Money  `json:"quantity"`
	UnitPrice   types.Money  `json:"unitPrice"`
	TaxRate     *types.Money `json:"taxRate,omitempty"`
}

// DocumentResponse contains document fields.
type DocumentResponse struct {
	ID       string `json:"id"`
	ClientID string `json:"clientId"`
	Kind     string `json:"kind"`
	Number   string `json:"number"`
	Status   string `json:"status"`

	IssueDate time.Time  `json:"issueDate"`
	DueDate   *time.Time `json:"dueDate,omitempty"`

	Subtotal       types.Money `json:"subtotal"`
	DiscountAmount types.Money `json:"discountAmount"`
	NetHT          types.Money `json:"netHT"`
	TaxTotal       types.Money `json:"taxTotal"`
	TotalTTC       types.Money `json:"totalTTC"`
	DepositApplied types.Money `json:"depositApplied"`
	NetToPay       types.Money `json:"netToPay"`

	TaxRate *types.Money `json:"taxRate,omitempty"`
	Notes   string       `json:"notes,omitempty"`

	RespondedAt          *time.Time `json:"respondedAt,omitempty"`
	ClientNote           string     `json:"clientNote,omitempty"`
	ConvertedToInvoiceID *string    `json:"convertedToInvoiceId,omitempty"`
	ExternalRef          *string    `json:"externalRef,omitempty"`
	ExternalStatus       *string    `json:"externalStatus,omitempty"`
	ReceiptForInvoiceID  *string    `json:"receiptForInvoiceId,omitempty"`

	Lines []LineResponse `json:"lines,omitempty"`

	Version   int       `json:"version"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// FromDocument creates DocumentResponse from a domain document.
func FromDocument(d *document.Document) DocumentResponse {
	resp := DocumentResponse{
		ID:             d.ID.String(),
		ClientID:       d.ClientID.String(),
		Kind:           string(d.Kind),
		Number:         d.Number,
		Status:         string(d.Status),
		IssueDate:      d.IssueDate,
		DueDate:        d.DueDate,
		Subtotal:       d.Subtotal,
		DiscountAmount: d.DiscountAmount,
		NetHT:          d.NetHT,
		TaxTotal:       d.TaxTotal,
		TotalTTC:       d.TotalTTC,
		DepositApplied: d.DepositApplied,
		NetToPay:       d.NetToPay,
		TaxRate:        d.TaxRate,
		Notes:          d.Notes,
		RespondedAt:    d.RespondedAt,
		ClientNote:     d.ClientNote,
		ExternalRef:    d.ExternalRef,
		ExternalStatus: d.ExternalStatus,
		Version:        d.Version,
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	if d.ConvertedToInvoiceID != nil {
		s := d.ConvertedToInvoiceID.String()
		resp.ConvertedToInvoiceID = &s
	}
	if d.ReceiptForInvoiceID != nil {
		s := d.ReceiptForInvoiceID.String()
		resp.ReceiptForInvoiceID = &s
	}
	for _, line := range d.Lines {
		resp.Lines = append(resp.Lines, LineResponse{
			LineID:      line.LineID.String(),
			LineNo:      line.LineNo,
			Description: line.Description,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice,
			TaxRate:     line.TaxRate,
		})
	}
	return resp
}

// DocumentFilterRequest contains list filter parameters.
type DocumentFilterRequest struct {
	PaginationRequest
	Search   string     `form:"search"`
	ClientID string     `form:"clientId"`
	Kind     string     `form:"kind"`
	Status   string     `form:"status"`
	DateFrom *time.Time `form:"dateFrom" time_format:"2006-01-02"`
	DateTo   *time.Time `form:"dateTo" time_format:"2006-01-02"`
	OrderBy  string     `form:"orderBy"`
}

// TotalsPreviewRequest exposes the calculator for live preview. The
// computation is byte-for-byte the one used at save time.
type TotalsPreviewRequest struct {
	Lines    []LineRequest    `json:"lines"`
	TaxRate  *types.Money     `json:"taxRate,omitempty"`
	Discount *DiscountRequest `json:"discount,omitempty"`
	Deposit  *types.Money     `json:"deposit,omitempty"`
}

// ToInput converts the request into a calculator input.
func (r *TotalsPreviewRequest) ToInput() totals.Input {
	in := totals.Input{
		Lines:   make([]totals.Line, 0, len(r.Lines)),
		TaxRate: r.TaxRate,
		Deposit: r.Deposit,
	}
	for _, line := range r.Lines {
		in.Lines = append(in.Lines, totals.Line{
			Quantity:  line.Quantity,
			UnitPrice: line.UnitPrice,
		})
	}
	if r.Discount != nil {
		in.Discount = &totals.Discount{Type: r.Discount.Type, Value: r.Discount.Value}
	}
	return in
}
