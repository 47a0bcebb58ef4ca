// Package memory provides an in-memory catalog. It backs tests and dry runs,
// keeps a log of every call and can be told to fail chosen calls.
package memory

import (
	"context"
	"io"
	"slices"
	"sync"

	"github.com/google/uuid"

	"github.com/mapaction/mapimport/pkg/catalog"
	"github.com/mapaction/mapimport/pkg/errors"
)

// Call is one logged catalog call.
type Call struct {
	Action string
	ID     string
}

// FaultFunc decides whether the nth call (1-based) of an action fails.
type FaultFunc func(n int) error

// FailNth fails only the nth call with err.
func FailNth(n int, err error) FaultFunc {
	return func(call int) error {
		if call == n {
			return err
		}
		return nil
	}
}

// FailAlways fails every call with err.
func FailAlways(err error) FaultFunc {
	return func(int) error { return err }
}

// Catalog is an in-memory catalog.Client. It is safe for concurrent use.
type Catalog struct {
	mu           sync.RWMutex
	records      map[string]*catalog.Record // by id
	names        map[string]string          // name -> record id
	resources    map[string]string          // resource id -> record id
	uploads      map[string][]byte          // resource id -> content
	groups       map[string]*catalog.Group  // by id and by name
	members      []catalog.Member
	versions     []catalog.Version
	vocabularies map[string]*catalog.Vocabulary

	calls  []Call
	counts map[string]int
	faults map[string]FaultFunc
	lost   map[string]FaultFunc
	newID  func() string
}

// Option configures a Catalog.
type Option func(*Catalog)

// WithGroups seeds operation groups.
func WithGroups(groups ...catalog.Group) Option {
	return func(c *Catalog) {
		for _, g := range groups {
			c.addGroup(g)
		}
	}
}

// WithRecords seeds records, assigning ids where missing.
func WithRecords(records ...*catalog.Record) Option {
	return func(c *Catalog) {
		for _, r := range records {
			c.addRecord(r.Clone())
		}
	}
}

// WithIDGenerator replaces the uuid id generator.
func WithIDGenerator(fn func() string) Option {
	return func(c *Catalog) {
		if fn != nil {
			c.newID = fn
		}
	}
}

// WithFault makes calls of action fail as decided by fn.
func WithFault(action string, fn FaultFunc) Option {
	return func(c *Catalog) {
		c.faults[action] = fn
	}
}

// WithLostResponse makes calls of action take effect and then fail as
// decided by fn, like a request whose response never arrives. Only
// resource_create honours it.
func WithLostResponse(action string, fn FaultFunc) Option {
	return func(c *Catalog) {
		c.lost[action] = fn
	}
}

// New creates an empty catalog.
func New(opts ...Option) *Catalog {
	c := &Catalog{
		records:      make(map[string]*catalog.Record),
		names:        make(map[string]string),
		resources:    make(map[string]string),
		uploads:      make(map[string][]byte),
		groups:       make(map[string]*catalog.Group),
		vocabularies: make(map[string]*catalog.Vocabulary),
		counts:       make(map[string]int),
		faults:       make(map[string]FaultFunc),
		lost:         make(map[string]FaultFunc),
		newID:        uuid.NewString,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetFault installs or, with a nil fn, removes a fault for action.
func (c *Catalog) SetFault(action string, fn FaultFunc) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if fn == nil {
		delete(c.faults, action)
		return
	}
	c.faults[action] = fn
}

// record logs a call and returns the injected fault, if any. Callers hold mu.
func (c *Catalog) record(ctx context.Context, action, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.calls = append(c.calls, Call{Action: action, ID: id})
	c.counts[action]++
	if fn, ok := c.faults[action]; ok {
		if err := fn(c.counts[action]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Catalog) addRecord(r *catalog.Record) *catalog.Record {
	if r.ID == "" {
		r.ID = c.newID()
	}
	if r.State == "" {
		r.State = "active"
	}
	for i := range r.Resources {
		if r.Resources[i].ID == "" {
			r.Resources[i].ID = c.newID()
		}
		r.Resources[i].PackageID = r.ID
		c.resources[r.Resources[i].ID] = r.ID
	}
	c.records[r.ID] = r
	c.names[r.Name] = r.ID
	return r
}

func (c *Catalog) addGroup(g catalog.Group) {
	if g.ID == "" {
		g.ID = c.newID()
	}
	if g.Name == "" {
		g.Name = g.ID
	}
	c.groups[g.ID] = &g
	c.groups[g.Name] = &g
}

func (c *Catalog) lookup(idOrName string) (*catalog.Record, bool) {
	if r, ok := c.records[idOrName]; ok {
		return r, true
	}
	if id, ok := c.names[idOrName]; ok {
		return c.records[id], true
	}
	return nil, false
}

// ShowRecord implements catalog.Client.
func (c *Catalog) ShowRecord(ctx context.Context, idOrName string) (*catalog.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.record(ctx, catalog.ActionShowRecord, idOrName); err != nil {
		return nil, err
	}
	r, ok := c.lookup(idOrName)
	if !ok {
		return nil, errors.NewNotFoundError("dataset", idOrName)
	}
	return r.Clone(), nil
}

// CreateRecord implements catalog.Client.
func (c *Catalog) CreateRecord(ctx context.Context, record *catalog.Record) (*catalog.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.record(ctx, catalog.ActionCreateRecord, record.Name); err != nil {
		return nil, err
	}
	if record.Name == "" {
		return nil, errors.NewValidationError("name", record.Name, "Missing value")
	}
	if _, taken := c.names[record.Name]; taken {
		return nil, errors.NewAlreadyExistsError("dataset", record.Name)
	}

	r := record.Clone()
	r.ID = ""
	r.Resources = nil
	return c.addRecord(r).Clone(), nil
}

// UpdateRecord implements catalog.Client. Resources are managed through the
// resource calls and are left as they are.
func (c *Catalog) UpdateRecord(ctx context.Context, record *catalog.Record) (*catalog.Record, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.record(ctx, catalog.ActionUpdateRecord, record.ID); err != nil {
		return nil, err
	}
	existing, ok := c.records[record.ID]
	if !ok {
		return nil, errors.NewNotFoundError("dataset", record.ID)
	}
	if record.Name == "" {
		return nil, errors.NewValidationError("name", record.Name, "Missing value")
	}
	if owner, taken := c.names[record.Name]; taken && owner != record.ID {
		return nil, errors.NewAlreadyExistsError("dataset", record.Name)
	}

	r := record.Clone()
	r.Resources = existing.Resources
	r.State = existing.State
	delete(c.names, existing.Name)
	c.names[r.Name] = r.ID
	c.records[r.ID] = r
	return r.Clone(), nil
}

// DeleteRecord implements catalog.Client. The record and its resources are
// removed outright.
func (c *Catalog) DeleteRecord(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.record(ctx, catalog.ActionDeleteRecord, id); err != nil {
		return err
	}
	r, ok := c.lookup(id)
	if !ok {
		return errors.NewNotFoundError("dataset", id)
	}
	for _, res := range r.Resources {
		delete(c.resources, res.ID)
		delete(c.uploads, res.ID)
	}
	c.members = slices.DeleteFunc(c.members, func(m catalog.Member) bool { return m.ObjectID == r.ID })
	delete(c.names, r.Name)
	delete(c.records, r.ID)
	return nil
}

// CreateResource implements catalog.Client.
func (c *Catalog) CreateResource(ctx context.Context, resource *catalog.Resource, body io.Reader) (*catalog.Resource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.record(ctx, catalog.ActionCreateResource, resource.Name); err != nil {
		return nil, err
	}
	r, ok := c.records[resource.PackageID]
	if !ok {
		return nil, errors.NewNotFoundError("dataset", resource.PackageID)
	}

	var content []byte
	if body != nil {
		var err error
		if content, err = io.ReadAll(body); err != nil {
			return nil, errors.WrapIO("read", resource.Name, err)
		}
	}

	res := *resource
	res.ID = c.newID()
	res.Size = int64(len(content))
	if res.URLType == "upload" {
		res.URL = "memory://" + r.ID + "/" + res.Name
	}
	r.Resources = append(r.Resources, res)
	c.resources[res.ID] = r.ID
	c.uploads[res.ID] = content
	if fn, ok := c.lost[catalog.ActionCreateResource]; ok {
		if err := fn(c.counts[catalog.ActionCreateResource]); err != nil {
			return nil, err
		}
	}
	return &res, nil
}

// DeleteResource implements catalog.Client.
func (c *Catalog) DeleteResource(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.record(ctx, catalog.ActionDeleteResource, id); err != nil {
		return err
	}
	recordID, ok := c.resources[id]
	if !ok {
		return errors.NewNotFoundError("resource", id)
	}
	r := c.records[recordID]
	r.Resources = slices.DeleteFunc(r.Resources, func(res catalog.Resource) bool { return res.ID == id })
	delete(c.resources, id)
	delete(c.uploads, id)
	return nil
}

// ShowGroup implements catalog.Client.
func (c *Catalog) ShowGroup(ctx context.Context, id string) (*catalog.Group, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.record(ctx, catalog.ActionShowGroup, id); err != nil {
		return nil, err
	}
	g, ok := c.groups[id]
	if !ok {
		return nil, errors.NewNotFoundError("group", id)
	}
	out := *g
	return &out, nil
}

// CreateMember implements catalog.Client.
func (c *Catalog) CreateMember(ctx context.Context, member *catalog.Member) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.record(ctx, catalog.ActionCreateMember, member.GroupID); err != nil {
		return err
	}
	g, ok := c.groups[member.GroupID]
	if !ok {
		return errors.NewNotFoundError("group", member.GroupID)
	}
	if _, ok := c.records[member.ObjectID]; !ok {
		return errors.NewNotFoundError("dataset", member.ObjectID)
	}
	m := *member
	m.GroupID = g.ID
	c.members = append(c.members, m)
	return nil
}

// CreateVersion implements catalog.Client.
func (c *Catalog) CreateVersion(ctx context.Context, version *catalog.Version) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.record(ctx, catalog.ActionCreateVersion, version.RecordID); err != nil {
		return err
	}
	if _, ok := c.records[version.RecordID]; !ok {
		return errors.NewNotFoundError("dataset", version.RecordID)
	}
	c.versions = append(c.versions, *version)
	return nil
}

// EnsureVocabulary implements catalog.VocabularyManager.
func (c *Catalog) EnsureVocabulary(ctx context.Context, name string, tags []string) (*catalog.Vocabulary, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.record(ctx, "vocabulary_update", name); err != nil {
		return nil, err
	}
	v, ok := c.vocabularies[name]
	if !ok {
		v = &catalog.Vocabulary{ID: c.newID(), Name: name}
		c.vocabularies[name] = v
	}
	v.Tags = append([]string(nil), tags...)
	out := *v
	out.Tags = append([]string(nil), v.Tags...)
	return &out, nil
}

// Calls returns the call log.
func (c *Catalog) Calls() []Call {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]Call(nil), c.calls...)
}

// Actions returns the action names of the call log in order.
func (c *Catalog) Actions() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, len(c.calls))
	for i, call := range c.calls {
		out[i] = call.Action
	}
	return out
}

// Mutations returns the number of logged calls that change catalog state.
func (c *Catalog) Mutations() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, call := range c.calls {
		if catalog.IsMutating(call.Action) {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log and per-action counters.
func (c *Catalog) ResetCalls() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = nil
	c.counts = make(map[string]int)
}

// Records returns copies of all records.
func (c *Catalog) Records() []*catalog.Record {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*catalog.Record, 0, len(c.records))
	for _, r := range c.records {
		out = append(out, r.Clone())
	}
	slices.SortFunc(out, func(a, b *catalog.Record) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return out
}

// Record returns a copy of a record by id or name, without logging a call.
func (c *Catalog) Record(idOrName string) (*catalog.Record, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	r, ok := c.lookup(idOrName)
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Upload returns the uploaded content of a resource.
func (c *Catalog) Upload(resourceID string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.uploads[resourceID]
	return b, ok
}

// Members returns the recorded group memberships.
func (c *Catalog) Members() []catalog.Member {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]catalog.Member(nil), c.members...)
}

// Versions returns the recorded version links.
func (c *Catalog) Versions() []catalog.Version {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]catalog.Version(nil), c.versions...)
}

// Vocabulary returns a vocabulary by name.
func (c *Catalog) Vocabulary(name string) (*catalog.Vocabulary, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.vocabularies[name]
	if !ok {
		return nil, false
	}
	out := *v
	out.Tags = append([]string(nil), v.Tags...)
	return &out, true
}

// Snapshot returns the catalog contents keyed by record name, for comparing
// state before and after an import.
func (c *Catalog) Snapshot() map[string][]string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string][]string, len(c.records))
	for _, r := range c.records {
		out[r.Name] = r.ResourceIDs()
	}
	return out
}

var (
	_ catalog.Client            = (*Catalog)(nil)
	_ catalog.VocabularyManager = (*Catalog)(nil)
)
