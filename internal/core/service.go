package core

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"metacore/internal/blob"
	"metacore/internal/infra/persistence/memory"
	"metacore/internal/tabular"
	"metacore/pkg/domain"
)

// Service exposes transactional operations over metadata tables, their
// columns and pools.
type Service struct {
	store PersistentStore
	opts  serviceOptions
}

// NewService constructs a service backed by the supplied store.
func NewService(store PersistentStore, opts ...ServiceOption) *Service {
	cfg := defaultServiceOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &Service{store: store, opts: cfg}
}

// NewInMemoryService creates a service and in-memory store with the given rules engine.
func NewInMemoryService(engine *RulesEngine, opts ...ServiceOption) *Service {
	return NewService(memory.NewStore(engine), opts...)
}

// Store returns the underlying storage implementation.
func (s *Service) Store() PersistentStore {
	return s.store
}

// PoolSyncReport describes how a pool synchronization changed the table.
type PoolSyncReport struct {
	Plan       SyncPlan `json:"plan"`
	Unresolved []string `json:"unresolved,omitempty"`
}

// ImportReport summarises a completed import.
type ImportReport struct {
	TableID     string         `json:"table_id"`
	SampleCount int            `json:"sample_count"`
	Columns     int            `json:"columns"`
	Pools       PoolSyncReport `json:"pools"`
}

type access struct {
	verb    string
	allowed func(domain.Resource, domain.PermissionTable, string) bool
}

var (
	accessView   = access{"view", domain.Resource.CanView}
	accessEdit   = access{"edit", domain.Resource.CanEdit}
	accessDelete = access{"delete", domain.Resource.CanDelete}
)

// authorize loads the table and checks the acting user against it.
func (s *Service) authorize(ctx context.Context, view TransactionView, tableID string, need access) (Table, error) {
	table, ok := view.FindTable(tableID)
	if !ok {
		return Table{}, domain.ErrNotFound{Entity: EntityTable, ID: tableID}
	}
	actor := ActorFromContext(ctx)
	if !need.allowed(table, s.opts.authorizer.Permissions(ctx, view), actor) {
		return Table{}, fmt.Errorf("%w: user %q cannot %s table %s", domain.ErrForbidden, actor, need.verb, tableID)
	}
	return table, nil
}

func (s *Service) notify(ctx context.Context, n domain.Notification) {
	n.Actor = ActorFromContext(ctx)
	if err := s.opts.notifier.Notify(ctx, n); err != nil {
		s.opts.logger.Warn("notification failed", "kind", n.Kind, "table_id", n.TableID, "error", err)
	}
}

// CreateTable persists a new table. Without an explicit owner the acting user
// owns it; group and job owners require edit rights on the owning resource.
func (s *Service) CreateTable(ctx context.Context, table Table) (created Table, res Result, err error) {
	ctx, finish := s.startOperation(ctx, "create_table")
	defer func() { finish(created.ID, err) }()

	actor := ActorFromContext(ctx)
	if strings.TrimSpace(table.Name) == "" {
		return Table{}, Result{}, fmt.Errorf("create table: name is required")
	}
	if table.Owner.ID == "" {
		if actor == "" {
			return Table{}, Result{}, fmt.Errorf("create table: %w: no acting user", domain.ErrForbidden)
		}
		table.Owner = domain.Owner{Kind: domain.OwnerUser, ID: actor}
	}
	if _, err := domain.ParseOwnerKind(string(table.Owner.Kind)); err != nil {
		return Table{}, Result{}, fmt.Errorf("create table: %w", err)
	}
	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		perms := s.opts.authorizer.Permissions(ctx, tx.Snapshot())
		if !ownerAllows(table.Owner, perms, actor) {
			return fmt.Errorf("%w: user %q cannot create tables for %s %s", domain.ErrForbidden, actor, table.Owner.Kind, table.Owner.ID)
		}
		var err error
		created, err = tx.CreateTable(table)
		return err
	})
	if err != nil {
		return Table{}, res, fmt.Errorf("create table: %w", err)
	}
	return created, res, nil
}

func ownerAllows(owner domain.Owner, perms domain.PermissionTable, actor string) bool {
	if actor == "" {
		return false
	}
	switch owner.Kind {
	case domain.OwnerUser:
		return owner.ID == actor
	case domain.OwnerLabGroup:
		return perms.Level(domain.ResourceLabGroup, owner.ID, actor) >= domain.PermissionEdit
	case domain.OwnerInstrumentJob:
		return perms.Level(domain.ResourceInstrumentJob, owner.ID, actor) >= domain.PermissionEdit
	default:
		return false
	}
}

// DeleteTable removes a table with its columns, pools and grants.
func (s *Service) DeleteTable(ctx context.Context, tableID string) (res Result, err error) {
	ctx, finish := s.startOperation(ctx, "delete_table")
	defer func() { finish(tableID, err) }()

	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := s.authorize(ctx, tx.Snapshot(), tableID, accessDelete); err != nil {
			return err
		}
		return tx.DeleteTable(tableID)
	})
	if err != nil {
		return res, fmt.Errorf("delete table %s: %w", tableID, err)
	}
	return res, nil
}

// ListTables returns the tables the acting user may view.
func (s *Service) ListTables(ctx context.Context) ([]Table, error) {
	actor := ActorFromContext(ctx)
	var out []Table
	err := s.store.View(ctx, func(view TransactionView) error {
		perms := s.opts.authorizer.Permissions(ctx, view)
		for _, t := range view.ListTables() {
			if t.CanView(perms, actor) {
				out = append(out, t)
			}
		}
		return nil
	})
	return out, err
}

// ListColumns returns the table's columns in position order.
func (s *Service) ListColumns(ctx context.Context, tableID string) ([]Column, error) {
	var out []Column
	err := s.store.View(ctx, func(view TransactionView) error {
		if _, err := s.authorize(ctx, view, tableID, accessView); err != nil {
			return err
		}
		out = view.ListColumns(tableID)
		return nil
	})
	return out, err
}

// ListPools returns the table's pools ordered by name.
func (s *Service) ListPools(ctx context.Context, tableID string) ([]Pool, error) {
	var out []Pool
	err := s.store.View(ctx, func(view TransactionView) error {
		if _, err := s.authorize(ctx, view, tableID, accessView); err != nil {
			return err
		}
		out = view.ListPools(tableID)
		return nil
	})
	return out, err
}

// ImportTable replaces the table's content with a header-first row matrix.
// Columns are matched to existing ones by name and occurrence so their IDs,
// visibility and pool mirrors survive re-imports. Pools are re-extracted and
// synchronized in the same transaction.
func (s *Service) ImportTable(ctx context.Context, tableID string, rows [][]string) (report ImportReport, res Result, err error) {
	ctx, finish := s.startOperation(ctx, "import_table")
	defer func() { finish(tableID, err) }()
	return s.importRows(ctx, tableID, rows)
}

func (s *Service) importRows(ctx context.Context, tableID string, rows [][]string) (ImportReport, Result, error) {
	if len(rows) == 0 {
		return ImportReport{}, Result{}, fmt.Errorf("import table %s: missing header row", tableID)
	}
	encoded, err := s.encodeColumns(ctx, rows)
	if err != nil {
		return ImportReport{}, Result{}, fmt.Errorf("import table %s: %w", tableID, err)
	}

	report := ImportReport{TableID: tableID, SampleCount: len(rows) - 1, Columns: len(encoded)}
	res, err := s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if _, err := s.authorize(ctx, tx.Snapshot(), tableID, accessEdit); err != nil {
			return err
		}
		table, err := tx.UpdateTable(tableID, func(t *Table) error {
			t.SampleCount = report.SampleCount
			return nil
		})
		if err != nil {
			return err
		}
		if err := applyColumns(ctx, tx, table, encoded); err != nil {
			return err
		}
		extraction, err := ExtractPoolCandidates(rows, extractOptions(table))
		if err != nil {
			return err
		}
		plan, err := applyPoolPlan(tx, table, SynchronizePools(tx.ListPools(tableID), extraction.Candidates))
		if err != nil {
			return err
		}
		report.Pools = PoolSyncReport{Plan: plan, Unresolved: extraction.Unresolved}
		return resyncPoolColumns(tx, table)
	})
	if err != nil {
		return ImportReport{}, res, fmt.Errorf("import table %s: %w", tableID, err)
	}

	s.logPoolDeletions(tableID, report.Pools.Plan)
	s.notify(ctx, domain.Notification{
		Kind:    domain.NotifyImportCompleted,
		TableID: tableID,
		Message: fmt.Sprintf("imported %d samples across %d columns", report.SampleCount, report.Columns),
		Data: map[string]any{
			"samples":         report.SampleCount,
			"columns":         report.Columns,
			"pools_created":   len(report.Pools.Plan.Created),
			"pools_updated":   len(report.Pools.Plan.Updated),
			"pools_deleted":   len(report.Pools.Plan.Deleted),
			"unresolved_refs": len(report.Pools.Unresolved),
		},
	})
	return report, res, nil
}

type encodedColumn struct {
	name         string
	defaultValue string
	modifiers    []domain.Modifier
}

// encodeColumns computes every column's default and modifiers on a bounded
// worker pool. Element i corresponds to header cell i.
func (s *Service) encodeColumns(ctx context.Context, rows [][]string) ([]encodedColumn, error) {
	header, data := rows[0], rows[1:]
	out := make([]encodedColumn, len(header))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.importWorkers)
	for i, name := range header {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			values := make([]string, len(data))
			for k, row := range data {
				values[k] = cellAt(row, i)
			}
			def, modifiers, err := ComputeObservedValues(values)
			if err != nil {
				return fmt.Errorf("column %s: %w", name, err)
			}
			out[i] = encodedColumn{name: strings.TrimSpace(name), defaultValue: def, modifiers: modifiers}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// columnKeys assigns each name an occurrence-qualified key so repeated SDRF
// headers such as comment[modification parameters] stay distinct.
func columnKeys(names []string) []string {
	seen := make(map[string]int, len(names))
	keys := make([]string, len(names))
	for i, name := range names {
		base := strings.ToLower(strings.TrimSpace(name))
		keys[i] = base + "#" + strconv.Itoa(seen[base])
		seen[base]++
	}
	return keys
}

func applyColumns(ctx context.Context, tx Transaction, table Table, encoded []encodedColumn) error {
	existing := tx.ListColumns(table.ID)
	existingNames := make([]string, len(existing))
	for i, c := range existing {
		existingNames[i] = c.Name
	}
	existingKeys := columnKeys(existingNames)
	byKey := make(map[string]Column, len(existing))
	for i, key := range existingKeys {
		byKey[key] = existing[i]
	}

	names := make([]string, len(encoded))
	for i, enc := range encoded {
		names[i] = enc.name
	}
	for pos, key := range columnKeys(names) {
		if err := ctx.Err(); err != nil {
			return err
		}
		enc := encoded[pos]
		if current, ok := byKey[key]; ok {
			delete(byKey, key)
			if _, err := tx.UpdateColumn(current.ID, func(c *Column) error {
				c.Name = enc.name
				c.Position = pos
				c.DefaultValue = enc.defaultValue
				c.Modifiers = enc.modifiers
				c.SampleCount = table.SampleCount
				return nil
			}); err != nil {
				return err
			}
			continue
		}
		if _, err := tx.CreateColumn(Column{
			TableID:      table.ID,
			Name:         enc.name,
			Type:         ColumnType(enc.name),
			Position:     pos,
			DefaultValue: enc.defaultValue,
			Modifiers:    enc.modifiers,
			SampleCount:  table.SampleCount,
		}); err != nil {
			return err
		}
	}
	for _, key := range existingKeys {
		stale, ok := byKey[key]
		if !ok {
			continue
		}
		if err := tx.DeleteColumn(stale.ID); err != nil {
			return err
		}
	}
	return nil
}

// ColumnType classifies an SDRF header by its bracket prefix, for example
// "characteristics" for characteristics[organism]. Plain headers are "special".
func ColumnType(name string) string {
	if prefix, _, ok := strings.Cut(name, "["); ok {
		return strings.ToLower(strings.TrimSpace(prefix))
	}
	return "special"
}

func extractOptions(table Table) PoolExtractOptions {
	return PoolExtractOptions{PooledColumn: table.PooledColumn, SourceNameColumn: table.SourceNameColumn}
}

// applyPoolPlan writes a sync plan and returns it with IDs filled in for the
// created pools.
func applyPoolPlan(tx Transaction, table Table, plan SyncPlan) (SyncPlan, error) {
	for _, p := range plan.Deleted {
		if err := tx.DeletePool(p.ID); err != nil {
			return plan, err
		}
	}
	for _, p := range plan.Updated {
		if _, err := tx.UpdatePool(p.ID, func(cur *Pool) error {
			cur.PooledOnlySamples = p.PooledOnlySamples
			cur.PooledAndIndependentSamples = p.PooledAndIndependentSamples
			cur.IsReference = p.IsReference
			cur.SDRFValue = p.SDRFValue
			return nil
		}); err != nil {
			return plan, err
		}
	}
	for i, p := range plan.Created {
		p.TableID = table.ID
		created, err := tx.CreatePool(p)
		if err != nil {
			return plan, err
		}
		plan.Created[i] = created
	}
	return plan, nil
}

// resyncPoolColumns refreshes every pool's mirrored columns from the
// table's current columns.
func resyncPoolColumns(tx Transaction, table Table) error {
	parents := tx.ListColumns(table.ID)
	opts := extractOptions(table)
	for _, pool := range tx.ListPools(table.ID) {
		cols, changed, err := SyncPoolColumns(pool, parents, opts)
		if err != nil {
			return err
		}
		if !changed {
			continue
		}
		if _, err := tx.UpdatePool(pool.ID, func(p *Pool) error {
			p.Columns = cols
			return nil
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) logPoolDeletions(tableID string, plan SyncPlan) {
	for _, p := range plan.Deleted {
		s.opts.logger.Warn("pool removed: no matching candidate", "table_id", tableID, "pool_id", p.ID, "pool", p.Name)
	}
}

// SynchronizePools re-derives pool candidates from the table's stored
// columns and reconciles the stored pools against them.
func (s *Service) SynchronizePools(ctx context.Context, tableID string) (report PoolSyncReport, res Result, err error) {
	ctx, finish := s.startOperation(ctx, "synchronize_pools")
	defer func() { finish(tableID, err) }()

	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		table, err := s.authorize(ctx, tx.Snapshot(), tableID, accessEdit)
		if err != nil {
			return err
		}
		rows, err := renderRows(tx.ListColumns(tableID), table.SampleCount, true)
		if err != nil {
			return err
		}
		extraction, err := ExtractPoolCandidates(rows, extractOptions(table))
		if err != nil {
			return err
		}
		plan, err := applyPoolPlan(tx, table, SynchronizePools(tx.ListPools(tableID), extraction.Candidates))
		if err != nil {
			return err
		}
		report = PoolSyncReport{Plan: plan, Unresolved: extraction.Unresolved}
		return resyncPoolColumns(tx, table)
	})
	if err != nil {
		return PoolSyncReport{}, res, fmt.Errorf("synchronize pools of table %s: %w", tableID, err)
	}

	s.logPoolDeletions(tableID, report.Plan)
	if report.Plan.HasChanges() {
		s.notify(ctx, domain.Notification{
			Kind:    domain.NotifyPoolsSynced,
			TableID: tableID,
			Message: fmt.Sprintf("pools synchronized: %d created, %d updated, %d deleted",
				len(report.Plan.Created), len(report.Plan.Updated), len(report.Plan.Deleted)),
		})
	}
	return report, res, nil
}

// AddColumn appends a column after the table's last column.
func (s *Service) AddColumn(ctx context.Context, tableID string, col Column) (created Column, res Result, err error) {
	ctx, finish := s.startOperation(ctx, "add_column")
	defer func() { finish(created.ID, err) }()

	col.Name = strings.TrimSpace(col.Name)
	if col.Name == "" {
		return Column{}, Result{}, fmt.Errorf("add column: name is required")
	}
	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		table, err := s.authorize(ctx, tx.Snapshot(), tableID, accessEdit)
		if err != nil {
			return err
		}
		col.ID = ""
		col.TableID = tableID
		col.SampleCount = table.SampleCount
		col.Position = 0
		for _, c := range tx.ListColumns(tableID) {
			col.Position = max(col.Position, c.Position+1)
		}
		if col.Type == "" {
			col.Type = ColumnType(col.Name)
		}
		created, err = tx.CreateColumn(col)
		if err != nil {
			return err
		}
		return resyncPoolColumns(tx, table)
	})
	if err != nil {
		return Column{}, res, fmt.Errorf("add column to table %s: %w", tableID, err)
	}
	return created, res, nil
}

// RemoveColumn deletes a column and drops its pool mirrors.
func (s *Service) RemoveColumn(ctx context.Context, columnID string) (res Result, err error) {
	ctx, finish := s.startOperation(ctx, "remove_column")
	defer func() { finish(columnID, err) }()

	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		col, ok := tx.FindColumn(columnID)
		if !ok {
			return domain.ErrNotFound{Entity: EntityColumn, ID: columnID}
		}
		table, err := s.authorize(ctx, tx.Snapshot(), col.TableID, accessEdit)
		if err != nil {
			return err
		}
		if err := tx.DeleteColumn(columnID); err != nil {
			return err
		}
		return resyncPoolColumns(tx, table)
	})
	if err != nil {
		return res, fmt.Errorf("remove column %s: %w", columnID, err)
	}
	return res, nil
}

// SetColumnHidden toggles visibility; hidden columns are not mirrored into pools.
func (s *Service) SetColumnHidden(ctx context.Context, columnID string, hidden bool) (updated Column, res Result, err error) {
	ctx, finish := s.startOperation(ctx, "set_column_hidden")
	defer func() { finish(columnID, err) }()

	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		col, ok := tx.FindColumn(columnID)
		if !ok {
			return domain.ErrNotFound{Entity: EntityColumn, ID: columnID}
		}
		table, err := s.authorize(ctx, tx.Snapshot(), col.TableID, accessEdit)
		if err != nil {
			return err
		}
		updated, err = tx.UpdateColumn(columnID, func(c *Column) error {
			c.Hidden = hidden
			return nil
		})
		if err != nil {
			return err
		}
		return resyncPoolColumns(tx, table)
	})
	if err != nil {
		return Column{}, res, fmt.Errorf("set hidden on column %s: %w", columnID, err)
	}
	return updated, res, nil
}

// ReplaceValue rewrites every sample of the column resolving to oldValue so
// it resolves to newValue.
func (s *Service) ReplaceValue(ctx context.Context, columnID, oldValue, newValue string) (summary ChangeSummary, res Result, err error) {
	ctx, finish := s.startOperation(ctx, "replace_value")
	defer func() { finish(columnID, err) }()

	var tableID string
	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		col, ok := tx.FindColumn(columnID)
		if !ok {
			return domain.ErrNotFound{Entity: EntityColumn, ID: columnID}
		}
		tableID = col.TableID
		if _, err := s.authorize(ctx, tx.Snapshot(), col.TableID, accessEdit); err != nil {
			return err
		}
		_, err := tx.UpdateColumn(columnID, func(c *Column) error {
			var err error
			summary, err = ReplaceValue(c, oldValue, newValue)
			return err
		})
		return err
	})
	if err != nil {
		return ChangeSummary{}, res, fmt.Errorf("replace value in column %s: %w", columnID, err)
	}
	if !summary.IsZero() {
		s.notify(ctx, domain.Notification{
			Kind:    domain.NotifyValueReplaced,
			TableID: tableID,
			Message: fmt.Sprintf("replaced %q with %q", oldValue, newValue),
			Data: map[string]any{
				"column_id":         columnID,
				"modifiers_merged":  summary.ModifiersMerged,
				"modifiers_deleted": summary.ModifiersDeleted,
				"modifiers_created": summary.ModifiersCreated,
				"default_changed":   summary.DefaultChanged,
			},
		})
	}
	return summary, res, nil
}

// ResolveColumn returns every effective value of a column; element 0 is sample 1.
func (s *Service) ResolveColumn(ctx context.Context, columnID string) ([]string, error) {
	var values []string
	err := s.store.View(ctx, func(view TransactionView) error {
		col, ok := view.FindColumn(columnID)
		if !ok {
			return domain.ErrNotFound{Entity: EntityColumn, ID: columnID}
		}
		if _, err := s.authorize(ctx, view, col.TableID, accessView); err != nil {
			return err
		}
		r, err := NewResolver(col)
		if err != nil {
			return err
		}
		values = r.Values()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("resolve column %s: %w", columnID, err)
	}
	return values, nil
}

// ResolveTable renders the table as a header-first row matrix.
func (s *Service) ResolveTable(ctx context.Context, tableID string, includeHidden bool) ([][]string, error) {
	var rows [][]string
	err := s.store.View(ctx, func(view TransactionView) error {
		table, err := s.authorize(ctx, view, tableID, accessView)
		if err != nil {
			return err
		}
		rows, err = renderRows(view.ListColumns(tableID), table.SampleCount, includeHidden)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("resolve table %s: %w", tableID, err)
	}
	return rows, nil
}

func renderRows(cols []Column, sampleCount int, includeHidden bool) ([][]string, error) {
	header := make([]string, 0, len(cols))
	resolvers := make([]*Resolver, 0, len(cols))
	for _, col := range cols {
		if col.Hidden && !includeHidden {
			continue
		}
		r, err := NewResolver(col)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", col.Name, err)
		}
		header = append(header, col.Name)
		resolvers = append(resolvers, r)
	}
	rows := make([][]string, 0, sampleCount+1)
	rows = append(rows, header)
	for i := 1; i <= sampleCount; i++ {
		row := make([]string, len(resolvers))
		for c, r := range resolvers {
			v, err := r.Resolve(i)
			if err != nil {
				return nil, fmt.Errorf("column %s: %w", header[c], err)
			}
			row[c] = v
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Service) blobStore() (blob.Store, error) {
	if s.opts.blobs == nil {
		return nil, fmt.Errorf("no blob store configured")
	}
	return s.opts.blobs, nil
}

// ExportTable writes the visible columns as TSV to the blob store.
func (s *Service) ExportTable(ctx context.Context, tableID string, compression tabular.Compression) (info blob.Info, err error) {
	ctx, finish := s.startOperation(ctx, "export_table")
	defer func() { finish(tableID, err) }()

	store, err := s.blobStore()
	if err != nil {
		return blob.Info{}, fmt.Errorf("export table %s: %w", tableID, err)
	}
	rows, err := s.ResolveTable(ctx, tableID, false)
	if err != nil {
		return blob.Info{}, fmt.Errorf("export table %s: %w", tableID, err)
	}
	var buf bytes.Buffer
	if err := tabular.WriteTSV(&buf, rows, compression); err != nil {
		return blob.Info{}, fmt.Errorf("export table %s: %w", tableID, err)
	}
	key := blob.ExportKey(tableID, s.opts.clock.Now(), ".tsv"+compression.Extension())
	info, err = store.Put(ctx, key, &buf, blob.PutOptions{
		ContentType: "text/tab-separated-values",
		Metadata: map[string]string{
			"table_id":         tableID,
			"content_encoding": compression.ContentEncoding(),
		},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("export table %s: %w", tableID, err)
	}
	return info, nil
}

// UploadSource stores a source file for the table, replacing an earlier
// upload of the same name.
func (s *Service) UploadSource(ctx context.Context, tableID, filename string, r io.Reader) (info blob.Info, err error) {
	ctx, finish := s.startOperation(ctx, "upload_source")
	defer func() { finish(tableID, err) }()

	store, err := s.blobStore()
	if err != nil {
		return blob.Info{}, fmt.Errorf("upload source for table %s: %w", tableID, err)
	}
	if err := s.store.View(ctx, func(view TransactionView) error {
		_, err := s.authorize(ctx, view, tableID, accessEdit)
		return err
	}); err != nil {
		return blob.Info{}, fmt.Errorf("upload source for table %s: %w", tableID, err)
	}
	key := blob.SourceKey(tableID, filename)
	if _, err := store.Delete(ctx, key); err != nil {
		return blob.Info{}, fmt.Errorf("upload source for table %s: %w", tableID, err)
	}
	info, err = store.Put(ctx, key, r, blob.PutOptions{
		ContentType: "application/octet-stream",
		Metadata:    map[string]string{"table_id": tableID, "filename": filename},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("upload source for table %s: %w", tableID, err)
	}
	return info, nil
}

// ImportFromBlob parses a stored file and imports it into the table. The
// key's extension selects the format; compression is detected from content.
func (s *Service) ImportFromBlob(ctx context.Context, tableID, key string) (report ImportReport, res Result, err error) {
	ctx, finish := s.startOperation(ctx, "import_from_blob")
	defer func() { finish(tableID, err) }()

	store, err := s.blobStore()
	if err != nil {
		return ImportReport{}, Result{}, fmt.Errorf("import table %s from %s: %w", tableID, key, err)
	}
	_, rc, err := store.Get(ctx, key)
	if err != nil {
		return ImportReport{}, Result{}, fmt.Errorf("import table %s from %s: %w", tableID, key, err)
	}
	defer func() { _ = rc.Close() }()
	rows, err := tabular.Read(rc, key)
	if err != nil {
		return ImportReport{}, Result{}, fmt.Errorf("import table %s from %s: %w", tableID, key, err)
	}
	return s.importRows(ctx, tableID, rows)
}

// GrantPermission upserts a grant. Table grants require delete rights on the
// table; other resources require an admin grant on that resource.
func (s *Service) GrantPermission(ctx context.Context, perm domain.Permission) (res Result, err error) {
	ctx, finish := s.startOperation(ctx, "grant_permission")
	defer func() { finish(perm.ResourceID, err) }()

	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if err := s.authorizeGrant(ctx, tx.Snapshot(), perm.Kind, perm.ResourceID); err != nil {
			return err
		}
		return tx.GrantPermission(perm)
	})
	if err != nil {
		return res, fmt.Errorf("grant %s on %s %s to %s: %w", perm.Level, perm.Kind, perm.ResourceID, perm.User, err)
	}
	return res, nil
}

// RevokePermission removes a grant under the same rules as GrantPermission.
func (s *Service) RevokePermission(ctx context.Context, key domain.PermissionKey) (res Result, err error) {
	ctx, finish := s.startOperation(ctx, "revoke_permission")
	defer func() { finish(key.ResourceID, err) }()

	res, err = s.store.RunInTransaction(ctx, func(tx Transaction) error {
		if err := s.authorizeGrant(ctx, tx.Snapshot(), key.Kind, key.ResourceID); err != nil {
			return err
		}
		return tx.RevokePermission(key)
	})
	if err != nil {
		return res, fmt.Errorf("revoke %s %s from %s: %w", key.Kind, key.ResourceID, key.User, err)
	}
	return res, nil
}

func (s *Service) authorizeGrant(ctx context.Context, view TransactionView, kind domain.ResourceKind, resourceID string) error {
	if kind == domain.ResourceTable {
		_, err := s.authorize(ctx, view, resourceID, accessDelete)
		return err
	}
	actor := ActorFromContext(ctx)
	if actor == "" || s.opts.authorizer.Permissions(ctx, view).Level(kind, resourceID, actor) < domain.PermissionAdmin {
		return fmt.Errorf("%w: user %q cannot manage grants on %s %s", domain.ErrForbidden, actor, kind, resourceID)
	}
	return nil
}
