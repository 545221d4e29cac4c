package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/erazemk/posoja/internal/auth"
	"github.com/erazemk/posoja/internal/db"
	"github.com/erazemk/posoja/internal/lending"
	"github.com/erazemk/posoja/internal/model"
	"github.com/erazemk/posoja/internal/photos"
	"github.com/erazemk/posoja/internal/store"
)

const testJWTSecret = "test-secret"

type fakeGeocoder struct{ fail bool }

func (g fakeGeocoder) ReverseGeocode(_ context.Context, lat, lon float64, lang string) (string, error) {
	if g.fail {
		return "", errors.New("upstream down")
	}
	return fmt.Sprintf("%.2f,%.2f (%s)", lat, lon, lang), nil
}

type testServer struct {
	*httptest.Server
	admin, owner, borrower string
}

func setupTestServer(t *testing.T) *testServer {
	t.Helper()
	database := db.NewTestDB(t)
	dir := &store.Directory{DB: database}

	svc := lending.NewService(database, dir, dir, lending.NewNotifier(dir, dir, dir))
	svc.Photos = &photos.DBStore{DB: database}

	router := NewRouter(Deps{
		DB:       database,
		Signer:   auth.NewSigner(testJWTSecret, 0),
		Lending:  svc,
		Geocoder: fakeGeocoder{},
	})
	server := httptest.NewServer(LoggingMiddleware(router))
	t.Cleanup(server.Close)

	ctx := context.Background()
	for _, u := range []struct{ name, role string }{
		{"admin", model.RoleAdmin},
		{"ana", model.RoleUser},
		{"bor", model.RoleUser},
	} {
		hash, _ := auth.HashPassword("password")
		if _, err := store.CreateUser(ctx, database, u.name, hash, u.role); err != nil {
			t.Fatalf("creating %s: %v", u.name, err)
		}
	}

	ts := &testServer{Server: server}
	ts.admin = ts.login(t, "admin", "password")
	ts.owner = ts.login(t, "ana", "password")
	ts.borrower = ts.login(t, "bor", "password")
	return ts
}

func (ts *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	resp := ts.do(t, "POST", "/api/auth/login", "", map[string]string{"username": username, "password": password})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("login %s failed: %d", username, resp.StatusCode)
	}
	var out struct {
		Token string `json:"token"`
	}
	decode(t, resp, &out)
	if out.Token == "" {
		t.Fatal("empty token from login")
	}
	return out.Token
}

func (ts *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var r io.Reader = http.NoBody
	if body != nil {
		data, _ := json.Marshal(body)
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, ts.URL+path, r)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode(t *testing.T, resp *http.Response, target any) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
}

func expectStatus(t *testing.T, resp *http.Response, want int) {
	t.Helper()
	if resp.StatusCode != want {
		body, _ := io.ReadAll(resp.Body)
		t.Fatalf("%s %s: expected %d, got %d: %s", resp.Request.Method, resp.Request.URL.Path, want, resp.StatusCode, body)
	}
}

// createOfferedCopy adds a book and a copy of it that ana offers in Ljubljana.
func (ts *testServer) createOfferedCopy(t *testing.T) (bookID, copyID int64) {
	t.Helper()
	resp := ts.do(t, "POST", "/api/books", ts.owner, map[string]string{"title": "Dune", "author": "Frank Herbert"})
	expectStatus(t, resp, http.StatusCreated)
	var book model.Book
	decode(t, resp, &book)

	resp = ts.do(t, "POST", fmt.Sprintf("/api/books/%d/copies", book.ID), ts.owner, map[string]any{
		"is_available_for_loan": true,
		"latitude":              46.0569,
		"longitude":             14.5058,
	})
	expectStatus(t, resp, http.StatusCreated)
	var c model.Copy
	decode(t, resp, &c)
	return book.ID, c.ID
}

func TestLoginEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, "POST", "/api/auth/login", "", map[string]string{"username": "admin", "password": "wrong"})
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = ts.do(t, "POST", "/api/auth/login", "", map[string]string{"username": "admin"})
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestRegisterEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, "POST", "/api/auth/register", "", map[string]string{"username": "cene", "password": "short"})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = ts.do(t, "POST", "/api/auth/register", "", map[string]string{"username": "cene", "password": "long enough"})
	expectStatus(t, resp, http.StatusCreated)
	var out struct {
		Token string     `json:"token"`
		User  model.User `json:"user"`
	}
	decode(t, resp, &out)
	if out.User.Role != model.RoleUser {
		t.Errorf("expected role user, got %q", out.User.Role)
	}

	resp = ts.do(t, "GET", "/api/auth/me", out.Token, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = ts.do(t, "POST", "/api/auth/register", "", map[string]string{"username": "cene", "password": "another one"})
	expectStatus(t, resp, http.StatusConflict)
}

func TestLogoutRevokesToken(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, "POST", "/api/auth/logout", ts.borrower, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = ts.do(t, "GET", "/api/auth/me", ts.borrower, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestChangePassword(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, "PUT", "/api/auth/password", ts.owner, map[string]string{
		"current_password": "wrong", "new_password": "new password",
	})
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = ts.do(t, "PUT", "/api/auth/password", ts.owner, map[string]string{
		"current_password": "password", "new_password": "new password",
	})
	expectStatus(t, resp, http.StatusOK)
	ts.login(t, "ana", "new password")
}

func TestMissingToken(t *testing.T) {
	ts := setupTestServer(t)
	resp := ts.do(t, "GET", "/api/books", "", nil)
	expectStatus(t, resp, http.StatusUnauthorized)

	resp = ts.do(t, "GET", "/api/books", "garbage", nil)
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestUsersAdminOnly(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, "GET", "/api/users", ts.owner, nil)
	expectStatus(t, resp, http.StatusForbidden)

	resp = ts.do(t, "GET", "/api/users", ts.admin, nil)
	expectStatus(t, resp, http.StatusOK)
	var users []model.User
	decode(t, resp, &users)
	if len(users) != 3 {
		t.Errorf("expected 3 users, got %d", len(users))
	}

	resp = ts.do(t, "POST", "/api/users", ts.admin, map[string]string{"username": "cene", "password": "password", "role": "manager"})
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestDeletedUserLosesAccess(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, "GET", "/api/auth/me", ts.borrower, nil)
	expectStatus(t, resp, http.StatusOK)
	var me model.User
	decode(t, resp, &me)

	resp = ts.do(t, "DELETE", fmt.Sprintf("/api/users/%d", me.ID), ts.admin, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = ts.do(t, "GET", "/api/books", ts.borrower, nil)
	expectStatus(t, resp, http.StatusUnauthorized)
}

func TestBooksAPIFlow(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, "POST", "/api/books", ts.owner, map[string]string{"title": "  "})
	expectStatus(t, resp, http.StatusBadRequest)

	bookID, copyID := ts.createOfferedCopy(t)

	resp = ts.do(t, "GET", "/api/books?q=dun", ts.borrower, nil)
	expectStatus(t, resp, http.StatusOK)
	var books []model.Book
	decode(t, resp, &books)
	if len(books) != 1 {
		t.Fatalf("expected 1 book, got %d", len(books))
	}

	resp = ts.do(t, "DELETE", fmt.Sprintf("/api/books/%d", bookID), ts.owner, nil)
	expectStatus(t, resp, http.StatusForbidden)

	resp = ts.do(t, "POST", "/api/loans", ts.borrower, map[string]int64{"copy_id": copyID})
	expectStatus(t, resp, http.StatusCreated)

	resp = ts.do(t, "DELETE", fmt.Sprintf("/api/books/%d", bookID), ts.admin, nil)
	expectStatus(t, resp, http.StatusConflict)
}

type loanResponse struct {
	model.Loan
	Actions []lending.Action `json:"actions"`
}

func TestLendingFlow(t *testing.T) {
	ts := setupTestServer(t)
	bookID, copyID := ts.createOfferedCopy(t)

	resp := ts.do(t, "GET", fmt.Sprintf("/api/books/%d/copies?lat=46.06&lon=14.51", bookID), ts.borrower, nil)
	expectStatus(t, resp, http.StatusOK)
	var avail lending.Availability
	decode(t, resp, &avail)
	if len(avail.Nearby) != 1 || avail.Nearby[0].ID != copyID {
		t.Fatalf("expected copy %d nearby, got %+v", copyID, avail)
	}
	if avail.Nearby[0].DistanceKm == nil {
		t.Error("expected a distance")
	}

	resp = ts.do(t, "POST", "/api/loans", ts.borrower, map[string]int64{"copy_id": copyID})
	expectStatus(t, resp, http.StatusCreated)
	var loan loanResponse
	decode(t, resp, &loan)
	if loan.Status != model.LoanRequested {
		t.Fatalf("expected REQUESTED, got %s", loan.Status)
	}
	loanPath := fmt.Sprintf("/api/loans/%d", loan.ID)

	resp = ts.do(t, "POST", loanPath+"/status", ts.borrower, map[string]string{"status": "APPROVED"})
	expectStatus(t, resp, http.StatusForbidden)

	resp = ts.do(t, "GET", fmt.Sprintf("/api/books/%d/copies/mine", bookID), ts.owner, nil)
	expectStatus(t, resp, http.StatusOK)
	var view lending.OwnerView
	decode(t, resp, &view)
	if view.Loan == nil || view.Loan.ID != loan.ID {
		t.Fatalf("expected owner view of loan %d, got %+v", loan.ID, view)
	}

	for _, status := range []string{"APPROVED", "ACTIVE"} {
		resp = ts.do(t, "POST", loanPath+"/status", ts.owner, map[string]string{"status": status})
		expectStatus(t, resp, http.StatusOK)
	}

	resp = ts.do(t, "PUT", loanPath+"/due-date", ts.owner, map[string]string{"due_date": "2099-01-31"})
	expectStatus(t, resp, http.StatusOK)
	decode(t, resp, &loan)
	if loan.DueAt == nil || loan.DueAt.Format("2006-01-02") != "2099-01-31" {
		t.Errorf("expected due date 2099-01-31, got %v", loan.DueAt)
	}

	resp = ts.do(t, "POST", loanPath+"/messages", ts.borrower, map[string]string{"body": "Thanks!"})
	expectStatus(t, resp, http.StatusCreated)

	resp = ts.do(t, "POST", loanPath+"/return", ts.owner, nil)
	expectStatus(t, resp, http.StatusOK)
	decode(t, resp, &loan)
	if loan.Status != model.LoanReturned || loan.ReturnedAt == nil {
		t.Errorf("expected RETURNED with return time, got %s", loan.Status)
	}
	if len(loan.Actions) != 0 {
		t.Errorf("expected no actions on a returned loan, got %v", loan.Actions)
	}

	resp = ts.do(t, "GET", loanPath+"/messages", ts.owner, nil)
	expectStatus(t, resp, http.StatusOK)
	var msgs []model.Message
	decode(t, resp, &msgs)
	if len(msgs) != 6 {
		t.Errorf("expected 6 messages, got %d", len(msgs))
	}

	resp = ts.do(t, "GET", "/api/loans?as=owner", ts.owner, nil)
	expectStatus(t, resp, http.StatusOK)
	var loans []model.Loan
	decode(t, resp, &loans)
	if len(loans) != 1 {
		t.Errorf("expected 1 loan, got %d", len(loans))
	}
}

func TestLendingErrorMapping(t *testing.T) {
	ts := setupTestServer(t)
	bookID, copyID := ts.createOfferedCopy(t)

	resp := ts.do(t, "POST", "/api/loans", ts.owner, map[string]int64{"copy_id": copyID})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = ts.do(t, "POST", "/api/loans", ts.borrower, map[string]int64{"copy_id": 9999})
	expectStatus(t, resp, http.StatusNotFound)

	resp = ts.do(t, "POST", fmt.Sprintf("/api/books/%d/copies", bookID), ts.borrower, map[string]any{"is_available_for_loan": true})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = ts.do(t, "POST", fmt.Sprintf("/api/books/%d/copies", bookID), ts.borrower, map[string]any{"latitude": 46.0})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = ts.do(t, "GET", fmt.Sprintf("/api/books/%d/copies?lat=95&lon=0", bookID), ts.borrower, nil)
	expectStatus(t, resp, http.StatusBadRequest)

	resp = ts.do(t, "POST", "/api/loans", ts.borrower, map[string]int64{"copy_id": copyID})
	expectStatus(t, resp, http.StatusCreated)
	var loan loanResponse
	decode(t, resp, &loan)
	loanPath := fmt.Sprintf("/api/loans/%d", loan.ID)

	resp = ts.do(t, "POST", loanPath+"/status", ts.owner, map[string]string{"status": "OVERDUE"})
	expectStatus(t, resp, http.StatusBadRequest)

	resp = ts.do(t, "POST", loanPath+"/return", ts.owner, nil)
	expectStatus(t, resp, http.StatusConflict)

	resp = ts.do(t, "POST", loanPath+"/status", ts.owner, map[string]any{"status": "APPROVED", "expected_version": loan.Version})
	expectStatus(t, resp, http.StatusOK)

	resp = ts.do(t, "POST", loanPath+"/status", ts.borrower, map[string]any{"status": "CANCELED", "expected_version": loan.Version})
	expectStatus(t, resp, http.StatusConflict)
	var conflict struct {
		Error     string `json:"error"`
		Retryable bool   `json:"retryable"`
	}
	decode(t, resp, &conflict)
	if !conflict.Retryable {
		t.Errorf("expected a retryable conflict, got %+v", conflict)
	}

	resp = ts.do(t, "GET", loanPath, ts.admin, nil)
	expectStatus(t, resp, http.StatusOK)

	resp = ts.do(t, "GET", "/api/loans/abc", ts.owner, nil)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestStrangerCannotSeeLoan(t *testing.T) {
	ts := setupTestServer(t)
	_, copyID := ts.createOfferedCopy(t)

	resp := ts.do(t, "POST", "/api/loans", ts.borrower, map[string]int64{"copy_id": copyID})
	expectStatus(t, resp, http.StatusCreated)
	var loan loanResponse
	decode(t, resp, &loan)

	resp = ts.do(t, "POST", "/api/auth/register", "", map[string]string{"username": "cene", "password": "long enough"})
	expectStatus(t, resp, http.StatusCreated)
	var out struct {
		Token string `json:"token"`
	}
	decode(t, resp, &out)

	resp = ts.do(t, "GET", fmt.Sprintf("/api/loans/%d", loan.ID), out.Token, nil)
	expectStatus(t, resp, http.StatusForbidden)
	resp = ts.do(t, "GET", fmt.Sprintf("/api/loans/%d/messages", loan.ID), out.Token, nil)
	expectStatus(t, resp, http.StatusForbidden)
}

func TestCopyEndpoints(t *testing.T) {
	ts := setupTestServer(t)
	_, copyID := ts.createOfferedCopy(t)
	copyPath := fmt.Sprintf("/api/copies/%d", copyID)

	resp := ts.do(t, "POST", copyPath+"/availability", ts.borrower, nil)
	expectStatus(t, resp, http.StatusForbidden)

	resp = ts.do(t, "POST", copyPath+"/availability", ts.owner, nil)
	expectStatus(t, resp, http.StatusOK)
	var c model.Copy
	decode(t, resp, &c)
	if c.AvailableForLoan {
		t.Error("expected copy to be withdrawn")
	}

	resp = ts.do(t, "PUT", copyPath+"/location", ts.owner, map[string]any{"latitude": nil, "longitude": nil})
	expectStatus(t, resp, http.StatusOK)

	resp = ts.do(t, "POST", copyPath+"/availability", ts.owner, nil)
	expectStatus(t, resp, http.StatusBadRequest)

	resp = ts.do(t, "PUT", copyPath, ts.owner, map[string]any{
		"is_available_for_loan": true, "latitude": 46.5547, "longitude": 15.6459,
	})
	expectStatus(t, resp, http.StatusOK)

	resp = ts.do(t, "GET", "/api/copies", ts.owner, nil)
	expectStatus(t, resp, http.StatusOK)
	var mine []model.Copy
	decode(t, resp, &mine)
	if len(mine) != 1 || !mine[0].AvailableForLoan {
		t.Errorf("expected one offered copy, got %+v", mine)
	}

	resp = ts.do(t, "DELETE", copyPath, ts.owner, nil)
	expectStatus(t, resp, http.StatusOK)
	resp = ts.do(t, "GET", copyPath, ts.owner, nil)
	expectStatus(t, resp, http.StatusNotFound)
}

func TestCopyPhotoUpload(t *testing.T) {
	ts := setupTestServer(t)
	_, copyID := ts.createOfferedCopy(t)
	photoPath := fmt.Sprintf("%s/api/copies/%d/photo", ts.URL, copyID)

	img := image.NewRGBA(image.Rect(0, 0, 20, 30))
	img.Set(1, 1, color.RGBA{255, 0, 0, 255})
	var pngData bytes.Buffer
	png.Encode(&pngData, img)

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, _ := mw.CreateFormFile("photo", "cover.png")
	part.Write(pngData.Bytes())
	mw.Close()

	req, _ := http.NewRequest("PUT", photoPath, &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+ts.owner)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)

	req, _ = http.NewRequest("GET", photoPath, nil)
	req.Header.Set("Authorization", "Bearer "+ts.borrower)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	expectStatus(t, resp, http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "image/jpeg" {
		t.Errorf("expected image/jpeg, got %s", ct)
	}
}

func TestGeocodeEndpoint(t *testing.T) {
	ts := setupTestServer(t)

	resp := ts.do(t, "GET", "/api/geocode/reverse?lat=46.05&lon=14.50&lang=sl", ts.borrower, nil)
	expectStatus(t, resp, http.StatusOK)
	var out map[string]string
	decode(t, resp, &out)
	if out["name"] != "46.05,14.50 (sl)" {
		t.Errorf("unexpected name %q", out["name"])
	}

	resp = ts.do(t, "GET", "/api/geocode/reverse?lat=46.05", ts.borrower, nil)
	expectStatus(t, resp, http.StatusBadRequest)
}

func TestGeocodeUpstreamFailure(t *testing.T) {
	h := &GeoHandler{Geocoder: fakeGeocoder{fail: true}}
	rec := httptest.NewRecorder()
	h.Reverse(rec, httptest.NewRequest("GET", "/api/geocode/reverse?lat=1&lon=2", nil))
	if rec.Code != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", rec.Code)
	}
}

func TestLoggingMiddlewareRequestID(t *testing.T) {
	h := LoggingMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if RequestID(r.Context()) == "" {
			t.Error("expected request id in context")
		}
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/", nil))
	if rec.Code != http.StatusTeapot {
		t.Errorf("expected 418, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected X-Request-ID header")
	}

	const given = "6f1c1f8e-9a43-4b5e-9a55-3f2d2b6f0c11"
	req := httptest.NewRequest("GET", "/", nil)
	req.Header.Set("X-Request-ID", given)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if got := rec.Header().Get("X-Request-ID"); got != given {
		t.Errorf("expected request id %s to be kept, got %s", given, got)
	}
}
