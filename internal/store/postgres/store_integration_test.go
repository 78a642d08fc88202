package postgres

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"agenx/queue-service/internal/models"
	"agenx/queue-service/internal/store"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestUpdateStatusConcurrency(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	businessID := uuid.NewString()
	entry := createEntry(t, ctx, st, businessID, "Ana", time.Now().UTC())

	const racers = 2
	var wg sync.WaitGroup
	errs := make([]error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = st.UpdateStatus(ctx, store.UpdateStatusInput{
				BusinessID: businessID,
				EntryID:    entry.EntryID,
				FromStatus: models.StatusWaiting,
				ToStatus:   models.StatusCalling,
				OccurredAt: time.Now().UTC(),
			})
		}(i)
	}
	wg.Wait()

	wins, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, store.ErrConflict):
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if wins != 1 || conflicts != 1 {
		t.Fatalf("wins=%d conflicts=%d, want 1/1", wins, conflicts)
	}

	got, err := st.GetEntry(ctx, entry.EntryID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if got.Status != models.StatusCalling {
		t.Fatalf("status = %s, want calling", got.Status)
	}
}

func TestUpdateStatusDistinguishesMissingFromStale(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	businessID := uuid.NewString()
	entry := createEntry(t, ctx, st, businessID, "Bruno", time.Now().UTC())

	_, err := st.UpdateStatus(ctx, store.UpdateStatusInput{
		BusinessID: businessID,
		EntryID:    uuid.NewString(),
		FromStatus: models.StatusWaiting,
		ToStatus:   models.StatusCalling,
	})
	if !errors.Is(err, store.ErrEntryNotFound) {
		t.Fatalf("expected ErrEntryNotFound for unknown entry, got %v", err)
	}

	_, err = st.UpdateStatus(ctx, store.UpdateStatusInput{
		BusinessID: businessID,
		EntryID:    entry.EntryID,
		FromStatus: models.StatusServing,
		ToStatus:   models.StatusCompleted,
	})
	if !errors.Is(err, store.ErrConflict) {
		t.Fatalf("expected ErrConflict for stale status, got %v", err)
	}
}

func TestListTodayOrderAndCountAhead(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	businessID := uuid.NewString()
	base := time.Now().UTC().Add(-2 * time.Minute)
	first := createEntry(t, ctx, st, businessID, "first", base)
	second := createEntry(t, ctx, st, businessID, "second", base.Add(time.Minute))
	third := createEntry(t, ctx, st, businessID, "third", base.Add(2*time.Minute))
	createEntry(t, ctx, st, uuid.NewString(), "elsewhere", base)

	entries, err := st.ListToday(ctx, businessID)
	if err != nil {
		t.Fatalf("list today: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(entries))
	}
	for i, want := range []string{first.EntryID, second.EntryID, third.EntryID} {
		if entries[i].EntryID != want {
			t.Fatalf("entries[%d] = %s, want %s", i, entries[i].EntryID, want)
		}
	}

	count, err := st.CountAhead(ctx, businessID, third.JoinedAt, third.EntryID)
	if err != nil {
		t.Fatalf("count ahead: %v", err)
	}
	if count != 3 {
		t.Fatalf("count = %d, want 3", count)
	}

	// Cancelled entries drop out of the active listing but stay in today's.
	if _, err := st.UpdateStatus(ctx, store.UpdateStatusInput{
		BusinessID: businessID,
		EntryID:    second.EntryID,
		FromStatus: models.StatusWaiting,
		ToStatus:   models.StatusCancelled,
	}); err != nil {
		t.Fatalf("cancel second: %v", err)
	}
	active, err := st.ListActive(ctx, businessID)
	if err != nil {
		t.Fatalf("list active: %v", err)
	}
	if len(active) != 2 || active[0].EntryID != first.EntryID || active[1].EntryID != third.EntryID {
		t.Fatalf("unexpected active %+v", active)
	}
}

func TestOutboxEventsWrittenWithMutations(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	businessID := uuid.NewString()
	entry := createEntry(t, ctx, st, businessID, "Carla", time.Now().UTC())
	if _, err := st.UpdateStatus(ctx, store.UpdateStatusInput{
		BusinessID: businessID,
		EntryID:    entry.EntryID,
		FromStatus: models.StatusWaiting,
		ToStatus:   models.StatusCalling,
	}); err != nil {
		t.Fatalf("update status: %v", err)
	}

	events, err := st.ListOutboxEvents(ctx, businessID, time.Time{}, 10)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}
	if events[0].Type != store.EventEntryCreated || events[1].Type != store.EventStatusChanged {
		t.Fatalf("event types = %s, %s", events[0].Type, events[1].Type)
	}

	// Incremental poll from the first event's timestamp.
	tail, err := st.ListOutboxEvents(ctx, businessID, events[0].CreatedAt, 10)
	if err != nil {
		t.Fatalf("list tail: %v", err)
	}
	if len(tail) != 1 || tail[0].EventID != events[1].EventID {
		t.Fatalf("unexpected tail %+v", tail)
	}
}

func TestClientLookupByStoredFormat(t *testing.T) {
	ctx := context.Background()
	st, _, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	businessID := uuid.NewString()
	created, err := st.CreateClient(ctx, store.CreateClientInput{
		BusinessID: businessID,
		Name:       "Ana Paula",
		Phone:      "(11) 98888-7777",
	})
	if err != nil {
		t.Fatalf("create client: %v", err)
	}

	client, found, err := st.FindClientByPhone(ctx, businessID, []string{"11988887777", "(11) 98888-7777"})
	if err != nil {
		t.Fatalf("find client: %v", err)
	}
	if !found || client.ClientID != created.ClientID {
		t.Fatalf("found=%v client=%+v", found, client)
	}

	_, found, err = st.FindClientByPhone(ctx, businessID, []string{"000000000"})
	if err != nil {
		t.Fatalf("find client: %v", err)
	}
	if found {
		t.Fatal("unexpected match for unknown phone")
	}
}

func TestProfessionalLookup(t *testing.T) {
	ctx := context.Background()
	st, pool, cleanup := setupTestStore(t, ctx)
	t.Cleanup(cleanup)

	businessID := uuid.NewString()
	proID := uuid.NewString()
	if _, err := pool.Exec(ctx, `
		INSERT INTO team_members (id, user_id, name, commission_rate, active)
		VALUES ($1, $2, 'Joana', 30, true)
	`, proID, businessID); err != nil {
		t.Fatalf("insert team member: %v", err)
	}

	pro, found, err := st.GetProfessional(ctx, businessID, proID)
	if err != nil {
		t.Fatalf("get professional: %v", err)
	}
	if !found || pro.Name != "Joana" || pro.CommissionRate != 30 {
		t.Fatalf("found=%v pro=%+v", found, pro)
	}

	_, found, err = st.GetProfessional(ctx, businessID, uuid.NewString())
	if err != nil {
		t.Fatalf("get professional: %v", err)
	}
	if found {
		t.Fatal("unexpected match for unknown professional")
	}
}

func createEntry(t *testing.T, ctx context.Context, st *Store, businessID, name string, joinedAt time.Time) models.QueueEntry {
	t.Helper()
	entry, err := st.CreateEntry(ctx, store.CreateEntryInput{
		BusinessID:  businessID,
		ClientName:  name,
		ClientPhone: "11988887777",
		JoinedAt:    joinedAt,
	})
	if err != nil {
		t.Fatalf("create entry %s: %v", name, err)
	}
	return entry
}

func setupTestStore(t *testing.T, ctx context.Context) (*Store, *pgxpool.Pool, func()) {
	t.Helper()
	dsn := os.Getenv("TEST_DB_DSN")
	if dsn == "" {
		dsn = os.Getenv("DB_DSN")
	}
	if dsn == "" {
		t.Skip("TEST_DB_DSN or DB_DSN is required for integration tests")
	}

	schema := "test_" + strings.ReplaceAll(uuid.NewString(), "-", "")
	if err := createSchema(ctx, dsn, schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}

	pool, err := newPoolWithSchema(ctx, dsn, schema)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}

	if err := applyMigrations(ctx, pool); err != nil {
		pool.Close()
		t.Fatalf("apply migrations: %v", err)
	}

	st := NewStore(pool)
	cleanup := func() {
		pool.Close()
		_ = dropSchema(context.Background(), dsn, schema)
	}
	return st, pool, cleanup
}

func createSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "CREATE SCHEMA "+schema)
	return err
}

func dropSchema(ctx context.Context, dsn, schema string) error {
	conn, err := pgx.Connect(ctx, dsn)
	if err != nil {
		return err
	}
	defer conn.Close(ctx)
	_, err = conn.Exec(ctx, "DROP SCHEMA "+schema+" CASCADE")
	return err
}

func newPoolWithSchema(ctx context.Context, dsn, schema string) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	return pgxpool.NewWithConfig(ctx, cfg)
}

func applyMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	dir := filepath.Join("..", "..", "..", "migrations")
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}
	var files []string
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}
		files = append(files, entry.Name())
	}
	sort.Strings(files)
	for _, name := range files {
		content, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return err
		}
		if strings.TrimSpace(string(content)) == "" {
			continue
		}
		if _, err := pool.Exec(ctx, string(content)); err != nil {
			return err
		}
	}
	return nil
}
