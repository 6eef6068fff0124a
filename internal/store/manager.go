package store

import (
	"context"

	json "github.com/goccy/go-json"

	"github.com/chanlog/chanlog/internal/event"
)

// Manager binds a client to one index/doctype pair. The binding is explicit
// construction-time dependency injection: callers hand the manager around
// instead of documents discovering their own index.
type Manager struct {
	client  *Client
	index   string
	doctype string
}

// NewManager builds a manager over index/doctype.
func NewManager(client *Client, index, doctype string) *Manager {
	return &Manager{client: client, index: index, doctype: doctype}
}

// Filter returns a lazy result set over the parsed free-text and field
// equality constraints.
func (m *Manager) Filter(text string, pairs ...Term) *ResultSet {
	return NewResultSet(m.client, m.index, m.doctype, ParseQuery(text, pairs...))
}

// All returns a lazy result set matching every document.
func (m *Manager) All() *ResultSet {
	return NewResultSet(m.client, m.index, m.doctype, ParseQuery("*:*"))
}

// Create indexes one event as a document, letting the store assign the id.
func (m *Manager) Create(ctx context.Context, ev *event.Event) error {
	_, err := m.client.Index(ctx, ev.Document(), m.index, m.doctype, "")
	return err
}

// Index returns the index name the manager is bound to.
func (m *Manager) Index() string {
	return m.index
}

// Doctype returns the doctype the manager is bound to.
func (m *Manager) Doctype() string {
	return m.doctype
}

// CreateIndex creates the bound index.
func (m *Manager) CreateIndex(ctx context.Context) error {
	_, err := m.client.CreateIndex(ctx, m.index, nil)
	return err
}

// DeleteIndex deletes the bound index.
func (m *Manager) DeleteIndex(ctx context.Context) error {
	_, err := m.client.DeleteIndex(ctx, m.index)
	return err
}

// Refresh makes recent writes to the bound index visible to search.
func (m *Manager) Refresh(ctx context.Context) error {
	_, err := m.client.Refresh(ctx, m.index)
	return err
}

// Optimize optimizes the bound index.
func (m *Manager) Optimize(ctx context.Context) error {
	_, err := m.client.Optimize(ctx, m.index)
	return err
}

// DeleteByQuery deletes every document matching the free-text query. The
// _query endpoint takes the bare fragment as its body, not a full search
// request.
func (m *Manager) DeleteByQuery(ctx context.Context, text string) error {
	body, err := json.Marshal(QueryStringQuery{Text: text}.Fragment())
	if err != nil {
		return err
	}
	_, err = m.client.DeleteByQuery(ctx, m.index, m.doctype, body)
	return err
}

// DeleteAllDocuments deletes every document in the bound index/doctype.
func (m *Manager) DeleteAllDocuments(ctx context.Context) error {
	return m.DeleteByQuery(ctx, "*:*")
}
