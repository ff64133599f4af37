package testutils

import (
	"context"

	"github.com/papercomputeco/recall/pkg/vector"
)

// MockVectorDriver is a test vector driver
type MockVectorDriver struct {
	// Documents accumulates everything passed to Add, keyed by scope.
	Documents map[string][]vector.Document

	// Results is returned by Query for any scope and embedding.
	Results []vector.QueryResult

	// FailAdd causes Add to return an error.
	FailAdd error
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		Documents: make(map[string][]vector.Document),
	}
}

func (m *MockVectorDriver) Add(_ context.Context, docs []vector.Document) error {
	if m.FailAdd != nil {
		return m.FailAdd
	}
	for _, doc := range docs {
		m.Documents[doc.Scope] = append(m.Documents[doc.Scope], doc)
	}
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, _ string, _ []float32, topK int) ([]vector.QueryResult, error) {
	if len(m.Results) < topK {
		return m.Results, nil
	}
	return m.Results[:topK], nil
}

func (m *MockVectorDriver) Delete(_ context.Context, scope string, ids []string) error {
	kept := m.Documents[scope][:0]
	for _, doc := range m.Documents[scope] {
		remove := false
		for _, id := range ids {
			if doc.ID == id {
				remove = true
				break
			}
		}
		if !remove {
			kept = append(kept, doc)
		}
	}
	m.Documents[scope] = kept
	return nil
}

func (m *MockVectorDriver) Close() error {
	return nil
}
