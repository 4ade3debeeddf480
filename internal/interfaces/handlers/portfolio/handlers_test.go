package portfolio

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"brickshare-backend/internal/application/ledger/ledgertest"
	"brickshare-backend/internal/application/portfolio"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const day = ledgertest.Day

func get(t *testing.T, app *fiber.App, path string) (int, map[string]interface{}) {
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return resp.StatusCode, out
}

func TestPortfolio_Routes(t *testing.T) {
	db := ledgertest.OpenDB(t)
	p := ledgertest.SeedProperty(t, db, 100000, 60*day,
		ledgertest.TrancheSpec{Start: -day, End: 10 * day, Total: 50000},
	)
	a := ledgertest.SeedUser(t, db, "alice", 100000)
	ledgertest.SeedInvestment(t, db, p, a, 25, 25000)
	ledgertest.SeedApplication(t, db, p, a, 1, 10, ledgertest.Epoch)

	h := &Handlers{Service: &portfolio.Service{DB: db}}
	app := fiber.New()
	app.Get("/portfolio/:user_id/investments", h.Investments)
	app.Get("/portfolio/:user_id/applications", h.Applications)
	app.Get("/portfolio/:user_id/transactions", h.Transactions)
	app.Get("/portfolio/:user_id/wallet", h.Wallet)

	base := "/portfolio/" + a.UserID.String()

	code, out := get(t, app, base+"/investments")
	assert.Equal(t, 200, code)
	assert.Len(t, out["data"], 1)

	code, out = get(t, app, base+"/applications?status=pending")
	assert.Equal(t, 200, code)
	assert.Len(t, out["data"], 1)

	code, _ = get(t, app, base+"/applications?status=weird")
	assert.Equal(t, 400, code)

	code, out = get(t, app, base+"/transactions")
	assert.Equal(t, 200, code)
	assert.Empty(t, out["data"])

	code, out = get(t, app, base+"/wallet")
	assert.Equal(t, 200, code)
	w := out["data"].(map[string]interface{})
	assert.True(t, decimal.RequireFromString(w["balance"].(string)).Equal(decimal.NewFromInt(90000)))
	assert.True(t, decimal.RequireFromString(w["reserved"].(string)).Equal(decimal.NewFromInt(10000)))

	code, _ = get(t, app, "/portfolio/nope/wallet")
	assert.Equal(t, 400, code)

	code, out = get(t, app, "/portfolio/"+uuid.NewString()+"/wallet")
	assert.Equal(t, 404, code)
	assert.Equal(t, "User not found", out["error"].(map[string]interface{})["message"])
}
