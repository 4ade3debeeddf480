package properties

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"testing"

	"brickshare-backend/internal/application/forecast"
	"brickshare-backend/internal/application/ledger/ledgertest"
	propsvc "brickshare-backend/internal/application/properties"
	"brickshare-backend/internal/domain"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const day = ledgertest.Day

func setupProperties(t *testing.T) (*fiber.App, *gorm.DB) {
	db := ledgertest.OpenDB(t)
	h := &Handlers{
		Service:         &propsvc.Service{DB: db},
		ForecastService: &forecast.Service{DB: db, Now: ledgertest.Clock(ledgertest.Epoch)},
	}
	app := fiber.New()
	app.Get("/properties", h.ListProperties)
	app.Get("/properties/:id", h.GetProperty)
	app.Get("/properties/:id/audit", h.AuditTrail)
	app.Get("/properties/:id/forecast", h.Forecast)
	return app, db
}

func get(t *testing.T, app *fiber.App, path string) (int, map[string]interface{}) {
	resp, err := app.Test(httptest.NewRequest("GET", path, nil))
	require.NoError(t, err)
	raw, _ := io.ReadAll(resp.Body)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return resp.StatusCode, out
}

func TestProperties_Reads(t *testing.T) {
	app, db := setupProperties(t)
	p := ledgertest.SeedProperty(t, db, 100000, 60*day,
		ledgertest.TrancheSpec{Start: -day, End: 10 * day, Total: 50000},
	)
	a := ledgertest.SeedUser(t, db, "alice", 100000)
	ledgertest.SeedApplication(t, db, p, a, 1, 20, ledgertest.Epoch)

	code, out := get(t, app, "/properties")
	assert.Equal(t, 200, code)
	assert.Len(t, out["data"], 1)
	assert.Equal(t, float64(1), out["metadata"].(map[string]interface{})["count"])

	code, out = get(t, app, "/properties/"+p.ID.String())
	assert.Equal(t, 200, code)
	data := out["data"].(map[string]interface{})
	assert.Len(t, data["tranches"], 1)

	code, out = get(t, app, "/properties/"+p.ID.String()+"/audit")
	assert.Equal(t, 200, code)
	assert.NotNil(t, out["data"])

	code, out = get(t, app, "/properties/"+p.ID.String()+"/forecast")
	assert.Equal(t, 200, code)
	fc := out["data"].(map[string]interface{})
	assert.Equal(t, "Harbour Lofts", fc["title"])
}

func TestProperties_Errors(t *testing.T) {
	app, _ := setupProperties(t)

	code, _ := get(t, app, "/properties?status=bogus")
	assert.Equal(t, 400, code)

	code, _ = get(t, app, "/properties/not-a-uuid")
	assert.Equal(t, 400, code)

	for _, suffix := range []string{"", "/audit", "/forecast"} {
		code, out := get(t, app, "/properties/"+uuid.NewString()+suffix)
		assert.Equal(t, 404, code, suffix)
		assert.Equal(t, "Property not found", out["error"].(map[string]interface{})["message"])
	}

	code, out := get(t, app, "/properties?status="+domain.PropertyStatusSold)
	assert.Equal(t, 200, code)
	assert.Empty(t, out["data"])
}
