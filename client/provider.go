package client

import (
	"context"
	"net/http"
	"net/url"
)

// PatientDocuments lists what the calling provider may open for patient.
// An unlinked patient yields an empty slice.
func (c *Client) PatientDocuments(ctx context.Context, patientEmail string) ([]VisibleDocument, error) {
	var docs []VisibleDocument
	err := c.do(ctx, call{
		method:     http.MethodGet,
		path:       "/patients/" + url.PathEscape(patientEmail) + "/documents",
		out:        &docs,
		idempotent: true,
	})
	if err != nil {
		return nil, err
	}
	if docs == nil {
		docs = []VisibleDocument{}
	}
	return docs, nil
}
