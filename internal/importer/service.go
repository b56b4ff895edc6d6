package importer

import (
	"context"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/duetrack/duetrack/internal/bill"
)

// BillCreator is the slice of the bill service the importer needs.
type BillCreator interface {
	Create(ctx context.Context, principalID, tenantID uuid.UUID, params bill.CreateParams) (*bill.Bill, error)
}

type Service struct {
	parser *Parser
	bills  BillCreator
}

func NewService(bills BillCreator) *Service {
	return &Service{
		parser: NewParser(),
		bills:  bills,
	}
}

// Result reports what an import run produced.
type Result struct {
	Created []*bill.Bill `json:"created"`
}

// Import parses the file and creates one bill per row. The whole file is
// parsed before anything is written, so a malformed row rejects the upload
// without partial imports. Creation still goes through the regular create
// path, so validation and the bill quota apply per row; hitting the quota
// mid-file stops the run and reports how far it got.
func (s *Service) Import(ctx context.Context, principalID, tenantID uuid.UUID, r io.Reader) (*Result, error) {
	params, err := s.parser.Parse(r)
	if err != nil {
		return nil, err
	}

	result := &Result{Created: make([]*bill.Bill, 0, len(params))}

	for i, p := range params {
		b, err := s.bills.Create(ctx, principalID, tenantID, p)
		if err != nil {
			return result, fmt.Errorf("row %d: %w", i+2, err)
		}

		result.Created = append(result.Created, b)
	}

	return result, nil
}
