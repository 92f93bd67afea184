package ledger

import (
	"bytes"
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cleared-dev/tally/internal/accounts"
	"github.com/cleared-dev/tally/internal/model"
	"github.com/cleared-dev/tally/internal/rules"
	"github.com/cleared-dev/tally/internal/stats"
	"github.com/cleared-dev/tally/internal/store"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func date(y, m, d int) time.Time { return time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC) }

func testAccounts() *accounts.Service {
	return accounts.NewService([]model.AccountConfig{
		{ID: "checking", Name: "Checking"},
		{
			ID:   "card",
			Name: "Card",
			TagOps: []model.RuleOp{
				{Name: "description", Comparison: model.CompareContains, Value: "SHELL", Tags: []string{"fuel"}},
			},
		},
	})
}

func newTestService(t *testing.T) (*Service, *store.DB) {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "tally.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return NewService(db, testAccounts(), rules.Engine{}, zerolog.Nop()), db
}

func expense(amount string, d time.Time, tags ...string) model.Draft {
	return model.Draft{Amount: dec(amount), Type: model.TypeExpense, Date: d, Tags: tags, AccountID: "checking", Description: "test"}
}

func income(amount string, d time.Time, tags ...string) model.Draft {
	dr := expense(amount, d, tags...)
	dr.Type = model.TypeIncome
	return dr
}

func snapshot(t *testing.T, db *store.DB, userID string) map[model.RollupKey]model.RollupRecord {
	t.Helper()
	recs, err := db.Rollups(context.Background(), store.RollupQuery{UserID: userID})
	require.NoError(t, err)
	out := make(map[model.RollupKey]model.RollupRecord, len(recs))
	for _, r := range recs {
		require.NoError(t, stats.Check(r))
		out[r.Key] = r
	}
	return out
}

func total(t *testing.T, db *store.DB, key model.RollupKey) decimal.Decimal {
	t.Helper()
	rec, err := db.Rollup(context.Background(), key)
	require.NoError(t, err)
	require.NotNil(t, rec, "rollup %v", key)
	return rec.YearlyTotal
}

func tagKey(v string, year int) model.RollupKey {
	return model.RollupKey{Dimension: model.DimensionTag, UserID: "u1", Value: v, Year: year}
}

func assertEquivalent(t *testing.T, want, got map[model.RollupKey]model.RollupRecord) {
	t.Helper()
	keys := make(map[model.RollupKey]bool)
	for k := range want {
		keys[k] = true
	}
	for k := range got {
		keys[k] = true
	}
	for k := range keys {
		a, b := want[k], got[k]
		a.Key, b.Key = k, k
		assert.True(t, stats.Equivalent(a, b), "rollup %v: want %s got %s", k, a.YearlyTotal, b.YearlyTotal)
	}
}

func TestAdd_PostsEveryFamily(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	txID, err := svc.Add(ctx, expense("100", date(2023, 3, 21), "test", "sample"), "u1")
	require.NoError(t, err)

	tx, err := svc.Get(ctx, txID, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"sample", "test"}, tx.Tags)

	recs := snapshot(t, db, "u1")
	assert.Len(t, recs, 5)
	assert.True(t, total(t, db, tagKey("test", 2023)).Equal(dec("-100")))
	assert.True(t, total(t, db, tagKey("sample", 2023)).Equal(dec("-100")))
	assert.True(t, total(t, db, model.RollupKey{Dimension: model.DimensionType, UserID: "u1", Value: "Expense", Year: 2023}).Equal(dec("100")))
	assert.True(t, total(t, db, model.RollupKey{Dimension: model.DimensionAccount, UserID: "u1", Value: "checking", Year: 2023}).Equal(dec("-100")))
	assert.True(t, total(t, db, model.RollupKey{Dimension: model.DimensionUser, UserID: "u1", Year: 2023}).Equal(dec("-100")))
}

func TestAdd_SignConventionFixture(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	_, err := svc.Add(ctx, income("630", date(2023, 1, 4), "test"), "u1")
	require.NoError(t, err)
	_, err = svc.Add(ctx, income("100", date(2023, 2, 9), "sample"), "u1")
	require.NoError(t, err)
	_, err = svc.Add(ctx, expense("40", date(2023, 2, 9)), "u1")
	require.NoError(t, err)

	_, err = svc.Add(ctx, expense("100", date(2023, 3, 21), "test", "sample"), "u1")
	require.NoError(t, err)

	assert.True(t, total(t, db, tagKey("test", 2023)).Equal(dec("530")))
	assert.True(t, total(t, db, tagKey("sample", 2023)).Equal(dec("0")))
	assert.True(t, total(t, db, model.RollupKey{Dimension: model.DimensionType, UserID: "u1", Value: "Expense", Year: 2023}).Equal(dec("140")))

	rec, err := db.Rollup(ctx, tagKey("test", 2023))
	require.NoError(t, err)
	assert.True(t, rec.Month(3).Equal(dec("-100")))
	assert.True(t, rec.Day(21).Equal(dec("-100")))
}

func TestAdd_NewTagCreatesRollup(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	rec, err := db.Rollup(ctx, tagKey("brand-new", 2024))
	require.NoError(t, err)
	assert.Nil(t, rec)

	_, err = svc.Add(ctx, income("12.50", date(2024, 7, 1), "brand-new"), "u1")
	require.NoError(t, err)
	assert.True(t, total(t, db, tagKey("brand-new", 2024)).Equal(dec("12.50")))
}

func TestAdd_RuleTagsAreAdditive(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	d := expense("55", date(2024, 5, 5), "car")
	d.AccountID = "card"
	d.Description = "SHELL OSLO"
	txID, err := svc.Add(ctx, d, "u1")
	require.NoError(t, err)

	tx, err := svc.Get(ctx, txID, "u1")
	require.NoError(t, err)
	assert.Equal(t, []string{"car", "fuel"}, tx.Tags)
	assert.Equal(t, []string{"car"}, tx.ManualTags)
	assert.True(t, total(t, db, tagKey("fuel", 2024)).Equal(dec("-55")))
}

func TestDelete_RoundTripRestoresRollups(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	_, err := svc.Add(ctx, income("630", date(2023, 1, 4), "test"), "u1")
	require.NoError(t, err)
	before := snapshot(t, db, "u1")

	txID, err := svc.Add(ctx, expense("100", date(2023, 3, 21), "test", "sample"), "u1")
	require.NoError(t, err)
	require.NoError(t, svc.Delete(ctx, txID, "u1"))

	after := snapshot(t, db, "u1")
	assertEquivalent(t, before, after)
	assert.Contains(t, after, tagKey("sample", 2023), "zeroed records persist")

	_, err = svc.Get(ctx, txID, "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUpdate_EquivalentToDeleteThenAdd(t *testing.T) {
	ctx := context.Background()
	oldDraft := expense("100", date(2023, 12, 31), "test", "sample")
	newDraft := income("42.10", date(2024, 1, 2), "test", "other")
	newDraft.AccountID = "card"

	svcA, dbA := newTestService(t)
	_, err := svcA.Add(ctx, income("630", date(2023, 1, 4), "test"), "u1")
	require.NoError(t, err)
	txID, err := svcA.Add(ctx, oldDraft, "u1")
	require.NoError(t, err)
	old, err := svcA.Get(ctx, txID, "u1")
	require.NoError(t, err)
	require.NoError(t, svcA.Update(ctx, old, newDraft, "u1"))

	svcB, dbB := newTestService(t)
	_, err = svcB.Add(ctx, income("630", date(2023, 1, 4), "test"), "u1")
	require.NoError(t, err)
	txID2, err := svcB.Add(ctx, oldDraft, "u1")
	require.NoError(t, err)
	require.NoError(t, svcB.Delete(ctx, txID2, "u1"))
	_, err = svcB.Add(ctx, newDraft, "u1")
	require.NoError(t, err)

	a, b := snapshot(t, dbA, "u1"), snapshot(t, dbB, "u1")
	assert.Len(t, a, len(b))
	assertEquivalent(t, b, a)

	updated, err := svcA.Get(ctx, txID, "u1")
	require.NoError(t, err)
	assert.Equal(t, model.TypeIncome, updated.Type)
	assert.Equal(t, 2024, updated.Year())
	assert.Equal(t, "card", updated.AccountID)
}

func TestUpdate_ReversesStoredSnapshot(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	txID, err := svc.Add(ctx, expense("100", date(2023, 3, 21), "test"), "u1")
	require.NoError(t, err)

	stale := model.Transaction{ID: txID, UserID: "u1", Amount: dec("1"), Type: model.TypeIncome, Date: date(2020, 1, 1)}
	require.NoError(t, svc.Update(ctx, stale, expense("30", date(2023, 3, 21), "test"), "u1"))

	assert.True(t, total(t, db, tagKey("test", 2023)).Equal(dec("-30")))
	recs, err := db.Rollups(ctx, store.RollupQuery{UserID: "u1", Year: 2020})
	require.NoError(t, err)
	assert.Empty(t, recs, "the caller's stale copy is never posted")
}

func TestAuthorization(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	txID, err := svc.Add(ctx, expense("10", date(2024, 2, 2), "x"), "u1")
	require.NoError(t, err)
	before := snapshot(t, db, "u1")
	old, err := svc.Get(ctx, txID, "u1")
	require.NoError(t, err)

	_, err = svc.Get(ctx, txID, "u2")
	assert.ErrorIs(t, err, ErrUnauthorized)
	err = svc.Update(ctx, old, expense("99", date(2024, 2, 2)), "u2")
	assert.ErrorIs(t, err, ErrUnauthorized)
	err = svc.Delete(ctx, txID, "u2")
	assert.ErrorIs(t, err, ErrUnauthorized)

	assertEquivalent(t, before, snapshot(t, db, "u1"))
	assert.Empty(t, snapshot(t, db, "u2"))

	err = svc.Delete(ctx, "missing", "u1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestValidation(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	tests := []struct {
		name  string
		draft func() model.Draft
		user  string
		field string
	}{
		{"zero amount", func() model.Draft { return expense("0", date(2024, 1, 1)) }, "u1", "amount"},
		{"negative amount", func() model.Draft { return expense("-5", date(2024, 1, 1)) }, "u1", "amount"},
		{"bad type", func() model.Draft { d := expense("5", date(2024, 1, 1)); d.Type = "Transfer"; return d }, "u1", "type"},
		{"no date", func() model.Draft { return expense("5", time.Time{}) }, "u1", "date"},
		{"no account", func() model.Draft { d := expense("5", date(2024, 1, 1)); d.AccountID = ""; return d }, "u1", "account"},
		{"no user", func() model.Draft { return expense("5", date(2024, 1, 1)) }, "", "user"},
		{"separator in tag", func() model.Draft { return expense("5", date(2024, 1, 1), "a;b") }, "u1", "tags"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Add(ctx, tt.draft(), tt.user)
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrValidation))

			var ve ValidationError
			require.True(t, errors.As(err, &ve))
			assert.Equal(t, tt.field, ve.Field)
		})
	}

	d := expense("5", date(2024, 1, 1))
	d.AccountID = "nope"
	_, err := svc.Add(ctx, d, "u1")
	assert.ErrorIs(t, err, ErrNotFound)

	assert.Empty(t, snapshot(t, db, "u1"))
}

func TestAddBatch_AllOrNothing(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	_, err := svc.AddBatch(ctx, []model.Draft{
		expense("5", date(2024, 1, 1), "a"),
		expense("0", date(2024, 1, 2), "b"),
	}, "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "draft 2")
	assert.Empty(t, snapshot(t, db, "u1"))

	ids, err := svc.AddBatch(ctx, []model.Draft{
		expense("5", date(2024, 1, 1), "a"),
		expense("7", date(2024, 1, 1), "a"),
	}, "u1")
	require.NoError(t, err)
	assert.Len(t, ids, 2)
	assert.True(t, total(t, db, tagKey("a", 2024)).Equal(dec("-12")), "postings on one key chain within a batch")
}

type failingStore struct {
	store.Store
	failPut bool
}

func (f *failingStore) Begin(ctx context.Context) (store.UnitOfWork, error) {
	uow, err := f.Store.Begin(ctx)
	if err != nil {
		return nil, err
	}
	return &failingUoW{UnitOfWork: uow, failPut: f.failPut}, nil
}

type failingUoW struct {
	store.UnitOfWork
	failPut bool
}

func (f *failingUoW) PutRollup(ctx context.Context, rec model.RollupRecord) error {
	if f.failPut {
		return errors.New("disk I/O error")
	}
	return f.UnitOfWork.PutRollup(ctx, rec)
}

func TestPersistenceFailure_LeavesNoState(t *testing.T) {
	ctx := context.Background()
	good, db := newTestService(t)
	txID, err := good.Add(ctx, expense("10", date(2024, 2, 2), "x"), "u1")
	require.NoError(t, err)
	before := snapshot(t, db, "u1")

	svc := NewService(&failingStore{Store: db, failPut: true}, testAccounts(), rules.Engine{}, zerolog.Nop())

	_, err = svc.Add(ctx, expense("99", date(2024, 2, 3), "y"), "u1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPersistence))
	var pe *PersistenceError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, StageCommitting, pe.Stage)

	err = svc.Delete(ctx, txID, "u1")
	assert.ErrorIs(t, err, ErrPersistence)

	stored, err := good.Get(ctx, txID, "u1")
	require.NoError(t, err)
	edit := expense("55", date(2025, 7, 7), "z")
	edit.Description = "changed"
	err = svc.Update(ctx, stored, edit, "u1")
	require.ErrorIs(t, err, ErrPersistence)
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, StageCommitting, pe.Stage)

	assertEquivalent(t, before, snapshot(t, db, "u1"))
	txs, err := good.List(ctx, "u1", 2024)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, stored, txs[0], "transaction row is unchanged")

	none, err := good.List(ctx, "u1", 2025)
	require.NoError(t, err)
	assert.Empty(t, none)
	rec, err := db.Rollup(ctx, tagKey("z", 2025))
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestUpdate_RetagsEditedImport(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)

	d := model.Draft{
		Amount:      dec("40"),
		Type:        model.TypeExpense,
		Date:        date(2024, 5, 1),
		AccountID:   "card",
		Description: "SHELL 1234",
		Fields:      map[string]string{"description": "SHELL 1234", "amount": "-40", "kind": "DEBIT_CARD"},
	}
	txID, err := svc.Add(ctx, d, "u1")
	require.NoError(t, err)
	assert.True(t, total(t, db, tagKey("fuel", 2024)).Equal(dec("-40")))

	stored, err := svc.Get(ctx, txID, "u1")
	require.NoError(t, err)
	require.Equal(t, []string{"fuel"}, stored.Tags)

	edit := d
	edit.Description = "Coffee shop"
	require.NoError(t, svc.Update(ctx, stored, edit, "u1"))

	got, err := svc.Get(ctx, txID, "u1")
	require.NoError(t, err)
	assert.Empty(t, got.Tags)
	assert.Equal(t, map[string]string{"amount": "-40", "kind": "DEBIT_CARD"}, got.Fields)
	assert.True(t, total(t, db, tagKey("fuel", 2024)).IsZero())
}

func TestRefreshFields(t *testing.T) {
	stored := model.Transaction{
		Amount:      dec("4"),
		Type:        model.TypeExpense,
		Date:        date(2025, 1, 3),
		Description: "GITHUB",
	}
	fields := map[string]string{"description": "GITHUB", "amount": "-4.00", "date": "2025-01-03", "kind": "ACH_DEBIT"}
	base := model.Draft{Amount: dec("4"), Type: model.TypeExpense, Date: date(2025, 1, 3), Description: "GITHUB", Fields: fields}

	tests := []struct {
		name string
		edit func(d *model.Draft)
		want []string
	}{
		{"unchanged", func(d *model.Draft) {}, []string{"amount", "date", "description", "kind"}},
		{"description", func(d *model.Draft) { d.Description = "x" }, []string{"amount", "date", "kind"}},
		{"amount", func(d *model.Draft) { d.Amount = dec("5") }, []string{"date", "description", "kind"}},
		{"type", func(d *model.Draft) { d.Type = model.TypeIncome }, []string{"date", "description", "kind"}},
		{"date", func(d *model.Draft) { d.Date = date(2025, 1, 4) }, []string{"amount", "description", "kind"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := base
			tt.edit(&d)
			got := refreshFields(stored, d)
			keys := make([]string, 0, len(got))
			for k := range got {
				keys = append(keys, k)
			}
			assert.ElementsMatch(t, tt.want, keys)
			assert.Len(t, fields, 4, "input fields are not modified")
		})
	}
}

func TestExport(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)

	d := expense("4", date(2025, 1, 3), "software")
	d.Description = "GITHUB, INC"
	_, err := svc.Add(ctx, d, "u1")
	require.NoError(t, err)
	_, err = svc.Add(ctx, income("3500", date(2025, 1, 15)), "u1")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, svc.Export(ctx, &buf, "u1", 2025))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, Header, lines[0])
	assert.Contains(t, lines[1], `2025-01-03,Expense,4.00,checking,"GITHUB, INC",software,software`)
	assert.Contains(t, lines[2], "2025-01-15,Income,3500.00,checking,test,,")
}
