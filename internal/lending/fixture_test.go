package lending

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/erazemk/posoja/internal/db"
	"github.com/erazemk/posoja/internal/model"
	"github.com/erazemk/posoja/internal/photos"
	"github.com/erazemk/posoja/internal/store"
)

var (
	ljubljana = model.Point{Lat: 46.0569, Lon: 14.5058}
	domzale   = model.Point{Lat: 46.1378, Lon: 14.5936}
	maribor   = model.Point{Lat: 46.5547, Lon: 15.6459}
)

type fixture struct {
	t   *testing.T
	ctx context.Context
	db  *sql.DB
	svc *Service
	now time.Time

	owner, borrower, stranger, admin *model.User
	book                             *model.Book
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	database := db.NewTestDB(t)
	dir := &store.Directory{DB: database}

	f := &fixture{
		t:   t,
		ctx: context.Background(),
		db:  database,
		now: time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc = NewService(database, dir, dir, NewNotifier(dir, dir, dir))
	f.svc.Photos = &photos.DBStore{DB: database}
	f.svc.Now = func() time.Time { return f.now }

	f.owner = f.user("ana", model.RoleUser)
	f.borrower = f.user("bor", model.RoleUser)
	f.stranger = f.user("cene", model.RoleUser)
	f.admin = f.user("root", model.RoleAdmin)

	book, err := store.CreateBook(f.ctx, database, "Dune", "Frank Herbert", "9780441013593")
	require.NoError(t, err)
	f.book = book
	return f
}

func (f *fixture) user(name, role string) *model.User {
	f.t.Helper()
	u, err := store.CreateUser(f.ctx, f.db, name, "hash", role)
	require.NoError(f.t, err)
	return u
}

// offeredCopy registers an available copy owned by f.owner in Ljubljana.
func (f *fixture) offeredCopy() *model.Copy {
	f.t.Helper()
	loc := ljubljana
	c, err := f.svc.RegisterCopy(f.ctx, f.owner.ID, f.book.ID, true, &loc)
	require.NoError(f.t, err)
	return c
}

// loanIn returns a loan on a fresh offered copy driven to status.
func (f *fixture) loanIn(status model.LoanStatus) *model.Loan {
	f.t.Helper()
	c := f.offeredCopy()
	l, err := f.svc.RequestLoan(f.ctx, f.borrower.ID, c.ID)
	require.NoError(f.t, err)

	var path []model.LoanStatus
	switch status {
	case model.LoanApproved:
		path = []model.LoanStatus{model.LoanApproved}
	case model.LoanActive:
		path = []model.LoanStatus{model.LoanApproved, model.LoanActive}
	case model.LoanReturned:
		path = []model.LoanStatus{model.LoanApproved, model.LoanActive, model.LoanReturned}
	case model.LoanCanceled:
		path = []model.LoanStatus{model.LoanCanceled}
	}
	for _, to := range path {
		l, err = f.svc.Transition(f.ctx, l.ID, f.owner.ID, to, 0)
		require.NoError(f.t, err)
	}
	return l
}

func (f *fixture) storedLoan(id int64) *model.Loan {
	f.t.Helper()
	l, err := store.GetLoan(f.ctx, f.db, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, l)
	return l
}

func (f *fixture) storedCopy(id int64) *model.Copy {
	f.t.Helper()
	c, err := store.GetCopy(f.ctx, f.db, id)
	require.NoError(f.t, err)
	require.NotNil(f.t, c)
	return c
}
