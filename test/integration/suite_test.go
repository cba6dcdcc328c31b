//go:build integration

package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/cucumber/godog"
	"github.com/gin-gonic/gin"

	httpadapter "github.com/jsamuelsen/print-quote-service/internal/adapters/http"
	"github.com/jsamuelsen/print-quote-service/internal/adapters/http/dto"
	"github.com/jsamuelsen/print-quote-service/internal/adapters/http/handlers"
	"github.com/jsamuelsen/print-quote-service/internal/adapters/mesh"
	"github.com/jsamuelsen/print-quote-service/internal/adapters/storage"
	"github.com/jsamuelsen/print-quote-service/internal/app"
	"github.com/jsamuelsen/print-quote-service/internal/domain"
	"github.com/jsamuelsen/print-quote-service/internal/ports"
)

// suiteBaseURL is the service under test: BASE_URL when set, otherwise an
// in-process server started by TestFeatures.
var suiteBaseURL string

// testContext holds state shared across step definitions within a scenario.
type testContext struct {
	baseURL      string
	client       *http.Client
	response     *http.Response
	responseBody []byte
	quoteID      string
	err          error
}

// newTestContext creates a new test context with sensible defaults.
func newTestContext() *testContext {
	return &testContext{
		baseURL: suiteBaseURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// reset clears response state between scenarios.
func (tc *testContext) reset() {
	if tc.response != nil && tc.response.Body != nil {
		tc.response.Body.Close()
	}
	tc.response = nil
	tc.responseBody = nil
	tc.quoteID = ""
	tc.err = nil
}

// InitializeScenario registers step definitions for each scenario.
func InitializeScenario(ctx *godog.ScenarioContext) {
	tc := newTestContext()

	ctx.Before(func(ctx context.Context, sc *godog.Scenario) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	ctx.After(func(ctx context.Context, sc *godog.Scenario, err error) (context.Context, error) {
		tc.reset()
		return ctx, nil
	})

	ctx.Step(`^the service is running$`, tc.theServiceIsRunning)
	ctx.Step(`^I request GET "([^"]*)"$`, tc.iRequestGET)
	ctx.Step(`^I upload "([^"]*)" as a (\d+) x (\d+) x (\d+) mm box in "([^"]*)" with quantity (\d+)$`, tc.iUploadABox)
	ctx.Step(`^I upload "([^"]*)" containing "([^"]*)"$`, tc.iUploadRaw)
	ctx.Step(`^I request the quote$`, tc.iRequestTheQuote)
	ctx.Step(`^I request the quote breakdown$`, tc.iRequestTheBreakdown)
	ctx.Step(`^I change the quantity of "([^"]*)" to (\d+)$`, tc.iChangeTheQuantity)
	ctx.Step(`^I change the material of "([^"]*)" to "([^"]*)"$`, tc.iChangeTheMaterial)
	ctx.Step(`^I delete the quote$`, tc.iDeleteTheQuote)
	ctx.Step(`^the response status should be (\d+)$`, tc.theResponseStatusShouldBe)
	ctx.Step(`^the response should contain "([^"]*)"$`, tc.theResponseShouldContain)
	ctx.Step(`^the JSON field "([^"]*)" should equal "([^"]*)"$`, tc.theJSONFieldShouldEqual)
}

// theServiceIsRunning verifies the service is reachable.
func (tc *testContext) theServiceIsRunning() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tc.baseURL+"/-/live", nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("service is not running at %s: %w", tc.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("service health check failed with status %d", resp.StatusCode)
	}

	return nil
}

// do sends a request and records the response.
func (tc *testContext) do(method, path, contentType string, body io.Reader) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, tc.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	tc.response, tc.err = tc.client.Do(req)
	if tc.err != nil {
		return fmt.Errorf("request failed: %w", tc.err)
	}
	defer tc.response.Body.Close()

	tc.responseBody, tc.err = io.ReadAll(tc.response.Body)
	if tc.err != nil {
		return fmt.Errorf("failed to read response body: %w", tc.err)
	}

	var created struct {
		QuoteID string `json:"quote_id"`
	}
	if json.Unmarshal(tc.responseBody, &created) == nil && created.QuoteID != "" {
		tc.quoteID = created.QuoteID
	}

	return nil
}

// iRequestGET makes a GET request to the specified path.
func (tc *testContext) iRequestGET(path string) error {
	return tc.do(http.MethodGet, path, "", nil)
}

func (tc *testContext) upload(filename string, data []byte, material string, quantity int) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile(dto.FormFiles, filename)
	if err != nil {
		return err
	}

	if _, err := part.Write(data); err != nil {
		return err
	}

	_ = w.WriteField(dto.FormMaterials, material)
	_ = w.WriteField(dto.FormQuantities, strconv.Itoa(quantity))

	if err := w.Close(); err != nil {
		return err
	}

	return tc.do(http.MethodPost, httpadapter.UploadRoute, w.FormDataContentType(), &buf)
}

// iUploadABox uploads a binary STL of an axis-aligned box.
func (tc *testContext) iUploadABox(filename string, x, y, z int, material string, quantity int) error {
	data := mesh.EncodeBinary(mesh.Box(float64(x), float64(y), float64(z)))

	return tc.upload(filename, data, material, quantity)
}

// iUploadRaw uploads a file with literal contents.
func (tc *testContext) iUploadRaw(filename, contents string) error {
	return tc.upload(filename, []byte(contents), "PA12_GREY", 1)
}

func (tc *testContext) quotePath(suffix string) (string, error) {
	if tc.quoteID == "" {
		return "", fmt.Errorf("no quote has been created in this scenario")
	}

	return "/api/v1/quotes/" + tc.quoteID + suffix, nil
}

func (tc *testContext) iRequestTheQuote() error {
	path, err := tc.quotePath("")
	if err != nil {
		return err
	}

	return tc.do(http.MethodGet, path, "", nil)
}

func (tc *testContext) iRequestTheBreakdown() error {
	path, err := tc.quotePath("/breakdown")
	if err != nil {
		return err
	}

	return tc.do(http.MethodGet, path, "", nil)
}

func (tc *testContext) postUpdate(update map[string]any) error {
	path, err := tc.quotePath("/update")
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]any{"file_updates": []any{update}})
	if err != nil {
		return err
	}

	return tc.do(http.MethodPost, path, "application/json", bytes.NewReader(body))
}

func (tc *testContext) iChangeTheQuantity(filename string, quantity int) error {
	return tc.postUpdate(map[string]any{"filename": filename, "quantity": quantity})
}

func (tc *testContext) iChangeTheMaterial(filename, material string) error {
	return tc.postUpdate(map[string]any{"filename": filename, "material": material})
}

func (tc *testContext) iDeleteTheQuote() error {
	path, err := tc.quotePath("")
	if err != nil {
		return err
	}

	return tc.do(http.MethodDelete, path, "", nil)
}

// theResponseStatusShouldBe asserts the response status code.
func (tc *testContext) theResponseStatusShouldBe(expectedCode int) error {
	if tc.response == nil {
		return fmt.Errorf("no response received")
	}

	if tc.response.StatusCode != expectedCode {
		return fmt.Errorf("expected status %d, got %d. Body: %s",
			expectedCode, tc.response.StatusCode, string(tc.responseBody))
	}

	return nil
}

// theResponseShouldContain asserts the response body contains the given text.
func (tc *testContext) theResponseShouldContain(text string) error {
	if tc.responseBody == nil {
		return fmt.Errorf("no response body")
	}

	if body := string(tc.responseBody); !strings.Contains(body, text) {
		return fmt.Errorf("response body does not contain %q.\nBody: %s", text, body)
	}

	return nil
}

// theJSONFieldShouldEqual compares a dotted path such as "error.code" or
// "files.0.material" against want.
func (tc *testContext) theJSONFieldShouldEqual(path, want string) error {
	var doc any
	if err := json.Unmarshal(tc.responseBody, &doc); err != nil {
		return fmt.Errorf("response is not JSON: %w", err)
	}

	node := doc
	for _, key := range strings.Split(path, ".") {
		switch v := node.(type) {
		case map[string]any:
			node = v[key]
		case []any:
			i, err := strconv.Atoi(key)
			if err != nil || i < 0 || i >= len(v) {
				return fmt.Errorf("%s: index %q out of range", path, key)
			}
			node = v[i]
		default:
			return fmt.Errorf("%s: cannot descend into %T", path, node)
		}
	}

	if got := fmt.Sprint(node); got != want {
		return fmt.Errorf("%s = %q, want %q.\nBody: %s", path, got, want, tc.responseBody)
	}

	return nil
}

// newInProcessServer serves the full router over an in-memory store.
func newInProcessServer(t *testing.T) *httptest.Server {
	t.Helper()

	gin.SetMode(gin.TestMode)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	metrics := app.NewMetrics(nil)
	artifacts := app.NewArtifactManager(logger, metrics)
	t.Cleanup(func() { _ = artifacts.Shutdown(context.Background()) })

	service := app.NewQuoteService(app.QuoteServiceConfig{
		Repository: storage.NewMemoryRepository(),
		Pricing: domain.NewPricingEngine(domain.PricingConfig{
			Currency:              "USD",
			MarkupPercentage:      15,
			MinimumOrder:          20,
			EstimatedShippingDays: 5,
			Rates:                 domain.MaterialRates{PA12Grey: 0.50, PA12Black: 0.55, PA12GB: 0.60},
			Shipping: domain.ShippingTable{
				SmallCost:          5,
				MediumCost:         10,
				LargeCost:          15,
				SmallThresholdCM3:  100,
				MediumThresholdCM3: 500,
			},
		}),
		Analyzer: app.NewAnalyzer(mesh.NewSTLLoader(), app.AnalyzerConfig{
			AllowedExtensions: []string{".stl"},
			MaxFileSize:       50 << 20,
			Envelope:          app.BuildEnvelope{MaxX: 380, MaxY: 284, MaxZ: 380},
		}, logger, metrics),
		Artifacts:    artifacts,
		Metrics:      metrics,
		Logger:       logger,
		Workers:      2,
		MaxFiles:     10,
		CleanupDelay: time.Hour,
	})

	engine := gin.New()
	httpadapter.SetupRouter(engine, httpadapter.NewDefaultRouterConfig(
		logger,
		"print-quote-service",
		handlers.NewHealthHandler(ports.NewHealthRegistry(), handlers.NewBuildInfo("test", "test", "test"), nil),
		handlers.NewQuoteHandler(service, t.TempDir()),
		handlers.NewConfigHandlerFromService(service),
	))

	server := httptest.NewServer(engine)
	t.Cleanup(server.Close)

	return server
}

// TestFeatures runs the GoDog BDD test suite.
func TestFeatures(t *testing.T) {
	suiteBaseURL = os.Getenv("BASE_URL")
	if suiteBaseURL == "" {
		suiteBaseURL = newInProcessServer(t).URL
	}

	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Format:   "pretty",
			Paths:    []string{"../features"},
			TestingT: t,
			Tags:     os.Getenv("GODOG_TAGS"),
		},
	}

	if suite.Run() != 0 {
		t.Fatal("non-zero status returned, failed to run feature tests")
	}
}
