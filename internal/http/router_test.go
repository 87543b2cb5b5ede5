package http

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rogerio-castellano/inventory-sync/internal/alert"
	"github.com/rogerio-castellano/inventory-sync/internal/auth"
	"github.com/rogerio-castellano/inventory-sync/internal/http/handlers"
	rl "github.com/rogerio-castellano/inventory-sync/internal/http/rate_limiter"
	"github.com/rogerio-castellano/inventory-sync/internal/inventory"
	"github.com/rogerio-castellano/inventory-sync/internal/logging"
	"github.com/rogerio-castellano/inventory-sync/internal/metrics"
	"github.com/rogerio-castellano/inventory-sync/internal/models"
	"github.com/rogerio-castellano/inventory-sync/internal/repo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const eventually = 5 * time.Second

type testEnv struct {
	router     http.Handler
	items      *repo.InventoryRepository
	recipients *repo.RecipientRepository
	history    *alert.MemoryHistory
	hub        *inventory.Hub
	signer     *auth.Signer
	token      string
}

func newTestEnv(t *testing.T, limiter *rl.Limiter) *testEnv {
	t.Helper()

	store := repo.NewMemoryStore()
	items := repo.NewInventoryRepository(store)
	recipients := repo.NewRecipientRepository(store)
	registry := inventory.NewRegistry(repo.NewThresholdRepository(store))
	history := alert.NewMemoryHistory(10)
	m := metrics.New()

	hub := inventory.NewHub(inventory.HubConfig{
		Items:        items,
		Recipients:   recipients,
		Registry:     registry,
		Metrics:      m,
		Logger:       logging.Discard(),
		ReadyTimeout: time.Second,
	})
	t.Cleanup(hub.Close)

	signer := auth.NewSigner("test-secret", time.Minute)
	token, err := signer.GenerateToken("u1")
	require.NoError(t, err)

	server := handlers.NewServer(handlers.ServerConfig{
		Hub:        hub,
		Registry:   registry,
		Recipients: recipients,
		History:    history,
		Logger:     logging.Discard(),
	})

	return &testEnv{
		router: NewRouter(RouterConfig{
			Server:  server,
			Signer:  signer,
			Limiter: limiter,
			Metrics: m,
			Logger:  logging.Discard(),
		}),
		items:      items,
		recipients: recipients,
		history:    history,
		hub:        hub,
		signer:     signer,
		token:      token,
	}
}

func (e *testEnv) do(method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Authorization", "Bearer "+e.token)

	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func (e *testEnv) seed(t *testing.T, location string, items ...models.Item) {
	t.Helper()
	for _, it := range items {
		require.NoError(t, e.items.Put(context.Background(), location, it))
	}
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

// lookup is safe to call from Eventually conditions.
func lookup(e *testEnv, location, name string) (models.Item, bool) {
	rr := e.do(http.MethodGet, "/locations/"+location+"/items/"+name, "")
	if rr.Code != http.StatusOK {
		return models.Item{}, false
	}
	var it models.Item
	if err := json.Unmarshal(rr.Body.Bytes(), &it); err != nil {
		return models.Item{}, false
	}
	return it, true
}

func itemNames(items []models.Item) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		out = append(out, it.Name)
	}
	return out
}

func TestAuthRequired(t *testing.T) {
	env := newTestEnv(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/locations/north/items", nil)
	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/locations/north/items", nil)
	req.Header.Set("Authorization", "Bearer not-a-token")
	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestHealthAndMetrics(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := httptest.NewRecorder()
	env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ok", rr.Body.String())

	env.seed(t, "north", models.Item{Name: "bolt", Quantity: 1})
	require.Equal(t, http.StatusOK, env.do(http.MethodGet, "/locations/north/items", "").Code)

	rr = httptest.NewRecorder()
	env.router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, `inventory_sync_snapshots_applied_total{location="north"}`)
	assert.Contains(t, body, `inventory_sync_http_requests_total{method="GET",route="/locations/{location}/items",status="200"}`)
}

func TestListItems(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "north",
		models.Item{Name: "item10", Quantity: 3, Date: "2024-01-03"},
		models.Item{Name: "item2", Quantity: 7, Date: "2024-01-01"},
		models.Item{Name: "bolt", Quantity: 5, Date: "2024-01-02"},
	)

	rr := env.do(http.MethodGet, "/locations/north/items", "")
	require.Equal(t, http.StatusOK, rr.Code)
	res := decode[handlers.ItemsSearchResult](t, rr)
	assert.Equal(t, []string{"item10", "item2", "bolt"}, itemNames(res.Data), "default is name, descending")
	assert.Equal(t, 3, res.Meta.TotalCount)
	assert.NotZero(t, res.Meta.Version)

	rr = env.do(http.MethodGet, "/locations/north/items?sort=quantity&order=asc", "")
	res = decode[handlers.ItemsSearchResult](t, rr)
	assert.Equal(t, []string{"item10", "bolt", "item2"}, itemNames(res.Data))

	rr = env.do(http.MethodGet, "/locations/north/items?sort=date&order=asc&q=ITEM", "")
	res = decode[handlers.ItemsSearchResult](t, rr)
	assert.Equal(t, []string{"item2", "item10"}, itemNames(res.Data))

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/locations/north/items?sort=price", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/locations/north/items?order=up", "").Code)
}

func TestItemLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(http.MethodPut, "/locations/north/items/widget", `{"quantity": 12}`)
	require.Equal(t, http.StatusAccepted, rr.Code, rr.Body.String())

	var item models.Item
	require.Eventually(t, func() bool {
		var ok bool
		item, ok = lookup(env, "north", "widget")
		return ok
	}, eventually, 10*time.Millisecond)
	assert.Equal(t, 12, item.Quantity)
	assert.Equal(t, "north", item.LocationID)
	assert.NotEmpty(t, item.Date)

	rr = env.do(http.MethodPatch, "/locations/north/items/widget", `{"quantity": 4}`)
	require.Equal(t, http.StatusAccepted, rr.Code)
	require.Eventually(t, func() bool {
		it, _ := lookup(env, "north", "widget")
		return it.Quantity == 4
	}, eventually, 10*time.Millisecond)

	rr = env.do(http.MethodDelete, "/locations/north/items/widget", "")
	require.Equal(t, http.StatusNoContent, rr.Code)
	require.Eventually(t, func() bool {
		return env.do(http.MethodGet, "/locations/north/items/widget", "").Code == http.StatusNotFound
	}, eventually, 10*time.Millisecond)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/locations/north/items/widget", "").Code)
}

func TestItemValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(http.MethodPut, "/locations/north/items/widget", `{"quantity": -1}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	verrs := decode[[]handlers.ValidationError](t, rr)
	require.Len(t, verrs, 1)
	assert.Equal(t, "quantity", verrs[0].Field)
	assert.Equal(t, "quantity cannot be negative", verrs[0].Description)

	rr = env.do(http.MethodPut, "/locations/north/items/widget", `{"quantity": "many"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(http.MethodPut, "/locations/north/items/widget", `{"quantity": 1} {}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = env.do(http.MethodPatch, "/locations/north/items/ghost", `{"quantity": 1}`)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestImportItems(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "north", models.Item{Name: "bolt", Quantity: 1})

	upload := func(query, csv string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		fw, err := mw.CreateFormFile("file", "items.csv")
		require.NoError(t, err)
		_, err = fw.Write([]byte(csv))
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/locations/north/items/import"+query, &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+env.token)
		rr := httptest.NewRecorder()
		env.router.ServeHTTP(rr, req)
		return rr
	}

	csv := "name,quantity\nbolt,9\nnut,4\n,3\nscrew,-2\nwasher,lots\n"

	rr := upload("", csv)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	res := decode[handlers.ImportItemsResult](t, rr)
	assert.Equal(t, 1, res.ImportedItemsCount)
	require.Len(t, res.Errors, 4)
	assert.Equal(t, "row 2: item 'bolt' already exists", res.Errors[0].Description)
	assert.Equal(t, "row 4: item name is required", res.Errors[1].Description)

	rr = upload("?mode=update", "name,quantity\nbolt,9\n")
	res = decode[handlers.ImportItemsResult](t, rr)
	assert.Equal(t, 1, res.ImportedItemsCount)
	assert.Empty(t, res.Errors)

	require.Eventually(t, func() bool {
		bolt, _ := lookup(env, "north", "bolt")
		_, hasNut := lookup(env, "north", "nut")
		return bolt.Quantity == 9 && hasNut
	}, eventually, 10*time.Millisecond)

	assert.Equal(t, http.StatusBadRequest, upload("", "title\nx\n").Code)

	// repeated names within one file
	rr = upload("", "name,quantity\ngear,1\ngear,5\n")
	res = decode[handlers.ImportItemsResult](t, rr)
	assert.Equal(t, 1, res.ImportedItemsCount)
	require.Len(t, res.Errors, 1)
	assert.Equal(t, "row 3: item 'gear' already exists", res.Errors[0].Description)

	rr = upload("?mode=update", "name,quantity\ncog,1\ncog,5\n")
	res = decode[handlers.ImportItemsResult](t, rr)
	assert.Equal(t, 2, res.ImportedItemsCount)
	assert.Empty(t, res.Errors)

	require.Eventually(t, func() bool {
		gear, _ := lookup(env, "north", "gear")
		cog, _ := lookup(env, "north", "cog")
		return gear.Quantity == 1 && cog.Quantity == 5
	}, eventually, 10*time.Millisecond)
}

func TestThresholds(t *testing.T) {
	env := newTestEnv(t, nil)

	rr := env.do(http.MethodPost, "/thresholds", `{"itemName": "widget", "threshold": 10}`)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	reg := decode[models.ThresholdRegistration](t, rr)
	assert.Equal(t, models.ThresholdRegistration{Owner: "u1", ItemKey: "widget", Threshold: 10}, reg)

	assert.Equal(t, http.StatusConflict, env.do(http.MethodPost, "/thresholds", `{"itemName": "widget", "threshold": 2}`).Code)

	rr = env.do(http.MethodPost, "/thresholds", `{"itemName": "", "threshold": -1}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Len(t, decode[[]handlers.ValidationError](t, rr), 2)

	rr = env.do(http.MethodGet, "/thresholds", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[handlers.ThresholdsResult](t, rr).Data, 1)

	assert.Equal(t, http.StatusNoContent, env.do(http.MethodDelete, "/thresholds/widget", "").Code)
	assert.Equal(t, http.StatusNotFound, env.do(http.MethodDelete, "/thresholds/widget", "").Code)
}

func TestRecipient(t *testing.T) {
	env := newTestEnv(t, nil)

	assert.Equal(t, http.StatusNotFound, env.do(http.MethodGet, "/locations/north/recipient", "").Code)

	rr := env.do(http.MethodPut, "/locations/north/recipient", `{"phoneNumber": "+1 (555) 010-0001"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	rr = env.do(http.MethodGet, "/locations/north/recipient", "")
	require.Equal(t, http.StatusOK, rr.Code)
	rc := decode[models.Recipient](t, rr)
	assert.Equal(t, "u1", rc.Owner)
	assert.Equal(t, "+1 (555) 010-0001", rc.PhoneNumber)

	rr = env.do(http.MethodPut, "/locations/north/recipient", `{"phoneNumber": "call me", "email": "nope"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Len(t, decode[[]handlers.ValidationError](t, rr), 2)
}

func TestSummary(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "north",
		models.Item{Name: "widget", Quantity: 8},
		models.Item{Name: "bolt", Quantity: 11},
	)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/thresholds", `{"itemName": "widget", "threshold": 10}`).Code)
	require.Equal(t, http.StatusCreated, env.do(http.MethodPost, "/thresholds", `{"itemName": "bolt", "threshold": 10}`).Code)

	rr := env.do(http.MethodGet, "/locations/north/summary", "")
	require.Equal(t, http.StatusOK, rr.Code)
	sum := decode[handlers.SummaryResponse](t, rr)
	assert.Equal(t, "north", sum.Location)
	assert.Equal(t, 2, sum.TotalItems)
	assert.Equal(t, 19, sum.TotalQuantity)
	assert.Equal(t, []handlers.LowStockItem{{ItemName: "widget", Quantity: 8, Threshold: 10}}, sum.LowStock)
}

func TestLocations(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "north", models.Item{Name: "bolt", Quantity: 1})
	env.seed(t, "south", models.Item{Name: "nut", Quantity: 1})

	rr := env.do(http.MethodGet, "/locations/south/snapshot", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[models.Snapshot](t, rr).Items, 1)

	rr = env.do(http.MethodGet, "/locations", "")
	assert.Empty(t, decode[handlers.LocationsResult](t, rr).Data, "a snapshot read does not start tracking")

	rr = env.do(http.MethodGet, "/locations/north/status", "")
	require.Equal(t, http.StatusOK, rr.Code)
	st := decode[inventory.Status](t, rr)
	assert.True(t, st.Ready)
	assert.Equal(t, 1, st.Items)

	rr = env.do(http.MethodPost, "/locations/north/refresh", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Greater(t, decode[inventory.Status](t, rr).Version, st.Version)

	rr = env.do(http.MethodGet, "/locations", "")
	statuses := decode[handlers.LocationsResult](t, rr).Data
	require.Len(t, statuses, 1)
	assert.Equal(t, "north", statuses[0].Location)
}

func TestAlertHistory(t *testing.T) {
	env := newTestEnv(t, nil)
	ctx := context.Background()
	for i, owner := range []string{"u1", "u2", "u1", "u1"} {
		require.NoError(t, env.history.Record(ctx, models.AlertDelivery{
			Event:  models.AlertEvent{ID: string(rune('a' + i)), Owner: owner},
			Status: models.DeliverySent,
		}))
	}

	rr := env.do(http.MethodGet, "/alerts/history", "")
	require.Equal(t, http.StatusOK, rr.Code)
	res := decode[handlers.AlertHistoryResult](t, rr)
	require.Len(t, res.Data, 3)
	assert.Equal(t, "d", res.Data[0].Event.ID)

	rr = env.do(http.MethodGet, "/alerts/history?limit=1", "")
	assert.Len(t, decode[handlers.AlertHistoryResult](t, rr).Data, 1)

	assert.Equal(t, http.StatusBadRequest, env.do(http.MethodGet, "/alerts/history?limit=0", "").Code)
}

func TestRateLimit(t *testing.T) {
	env := newTestEnv(t, rl.NewLimiter(0.001, 2))

	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/thresholds", "").Code)
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/thresholds", "").Code)
	rr := env.do(http.MethodGet, "/thresholds", "")
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, "1", rr.Header().Get("Retry-After"))

	// limits are per owner
	other, err := env.signer.GenerateToken("u2")
	require.NoError(t, err)
	env.token = other
	assert.Equal(t, http.StatusOK, env.do(http.MethodGet, "/thresholds", "").Code)
}

func TestStream(t *testing.T) {
	env := newTestEnv(t, nil)
	env.seed(t, "north", models.Item{Name: "bolt", Quantity: 1})

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), eventually)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/locations/north/stream", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+env.token)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	next := func() models.Snapshot {
		var event string
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			line = strings.TrimSpace(line)
			switch {
			case strings.HasPrefix(line, "event: "):
				event = strings.TrimPrefix(line, "event: ")
			case strings.HasPrefix(line, "data: "):
				require.Equal(t, "snapshot", event)
				var s models.Snapshot
				require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data: ")), &s))
				return s
			}
		}
	}

	first := next()
	assert.Len(t, first.Items, 1)

	env.seed(t, "north", models.Item{Name: "nut", Quantity: 2})
	for {
		s := next()
		if len(s.Items) == 2 {
			break
		}
	}
}
