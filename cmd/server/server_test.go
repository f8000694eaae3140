package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/awkward-3312/SDSinventory/internal/costing"
	"github.com/awkward-3312/SDSinventory/internal/db"
	"github.com/awkward-3312/SDSinventory/internal/inventory"
	"github.com/awkward-3312/SDSinventory/internal/migrations"
	"github.com/awkward-3312/SDSinventory/internal/model"
	"github.com/awkward-3312/SDSinventory/internal/quote"
	"github.com/awkward-3312/SDSinventory/internal/seed"
	"github.com/awkward-3312/SDSinventory/internal/store"
)

const (
	testAdminEmail    = "admin@sds.test"
	testAdminPassword = "s3cret-pass"
	testCurrency      = "HNL"
)

func newTestServer(t *testing.T) *server {
	t.Helper()
	ctx := context.Background()

	conn, err := db.Open(ctx, filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	require.NoError(t, migrations.Up(ctx, conn))
	_, err = seed.Run(ctx, conn, seed.Config{AdminEmail: testAdminEmail, AdminPassword: testAdminPassword})
	require.NoError(t, err)

	st := store.New(conn, time.Minute)
	engine := costing.NewEngine(st, st, st, testCurrency)
	return &server{
		auth:      newAuthService(conn, "test-secret"),
		store:     st,
		engine:    engine,
		quotes:    quote.NewService(engine, st, testCurrency, 15),
		inventory: inventory.NewService(engine, st, testCurrency),
		validate:  newValidator(),
	}
}

func doJSON(t *testing.T, h http.Handler, cookie *http.Cookie, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rdr io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, rdr)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeBody[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out), rr.Body.String())
	return out
}

func login(t *testing.T, h http.Handler) *http.Cookie {
	t.Helper()
	rr := doJSON(t, h, nil, http.MethodPost, "/login", loginRequest{Email: testAdminEmail, Password: testAdminPassword})
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	for _, c := range rr.Result().Cookies() {
		if c.Name == sessionCookieName {
			return c
		}
	}
	t.Fatal("login did not set a session cookie")
	return nil
}

// bannerRecipe creates a variable recipe consuming width*height m2 of a 100 HNL/m2 vinyl.
func bannerRecipe(t *testing.T, s *server) *model.Recipe {
	t.Helper()
	ctx := context.Background()

	sup, err := s.store.CreateSupply(ctx, model.Supply{Name: "Vinil", UnitCode: "m2", StockOnHand: 50, AvgUnitCost: 100, Active: true})
	require.NoError(t, err)
	p, err := s.store.CreateProduct(ctx, model.Product{Name: "Banner", ProductType: model.ProductVariable, UnitSale: "m2", MarginTarget: 0.4})
	require.NoError(t, err)
	r, err := s.store.CreateRecipe(ctx, model.Recipe{ProductID: p.ID, Name: "Banner", MarginTarget: 0.4})
	require.NoError(t, err)
	_, err = s.store.AddItem(ctx, model.RecipeItem{RecipeID: r.ID, SupplyID: sup.ID, QtyFormula: "width * height"})
	require.NoError(t, err)
	return r
}
