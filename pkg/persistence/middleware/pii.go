package middleware

import (
	"context"
	"regexp"

	"github.com/aretw0/mosaic/pkg/domain"
	"github.com/aretw0/mosaic/pkg/ports"
)

// Mask replaces redacted values in stored snapshots.
const Mask = "***"

type piiMiddleware struct {
	next     ports.SnapshotStore
	patterns []*regexp.Regexp
}

// NewPIIMiddleware creates a middleware that masks cells whose ID matches one
// of the patterns, and record fields whose name matches, before saving.
// Masked cells come back as the Mask text on Load.
func NewPIIMiddleware(patternStrings []string) Middleware {
	patterns := make([]*regexp.Regexp, len(patternStrings))
	for i, p := range patternStrings {
		patterns[i] = regexp.MustCompile(p)
	}
	return func(next ports.SnapshotStore) ports.SnapshotStore {
		return &piiMiddleware{next: next, patterns: patterns}
	}
}

func (m *piiMiddleware) Save(ctx context.Context, sessionID string, snap *domain.Snapshot) error {
	// 1. Deep Clone to avoid side effects on the snapshot held by the Engine.
	cloned := snap.Clone()

	// 2. Mask PII
	for id, c := range cloned.Cells {
		if m.matches(id.String()) {
			if !c.Value.IsUnset() {
				c.Value = domain.Text(Mask)
			}
		} else {
			c.Value = m.maskRecords(c.Value)
		}
		cloned.Cells[id] = c
	}

	return m.next.Save(ctx, sessionID, cloned)
}

func (m *piiMiddleware) Load(ctx context.Context, sessionID string) (*domain.Snapshot, error) {
	return m.next.Load(ctx, sessionID)
}

func (m *piiMiddleware) Delete(ctx context.Context, sessionID string) error {
	return m.next.Delete(ctx, sessionID)
}

func (m *piiMiddleware) List(ctx context.Context) ([]string, error) {
	return m.next.List(ctx)
}

// Helpers

func (m *piiMiddleware) matches(key string) bool {
	for _, p := range m.patterns {
		if p.MatchString(key) {
			return true
		}
	}
	return false
}

// maskRecords masks matching fields of record and table rows, recursing into lists.
func (m *piiMiddleware) maskRecords(v domain.Value) domain.Value {
	switch v.Kind() {
	case domain.KindRecords:
		rows, _ := v.AsRecords()
		m.maskRows(rows)
		return domain.Records(rows...)
	case domain.KindTable:
		t, _ := v.AsTable()
		m.maskRows(t.Rows)
		return domain.Tab(t)
	case domain.KindList:
		items, _ := v.AsList()
		for i, item := range items {
			items[i] = m.maskRecords(item)
		}
		return domain.List(items...)
	}
	return v
}

func (m *piiMiddleware) maskRows(rows []domain.Record) {
	for _, row := range rows {
		for k := range row {
			if m.matches(k) {
				row[k] = domain.Text(Mask)
			}
		}
	}
}
