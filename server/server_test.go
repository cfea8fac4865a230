package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/steinfletcher/apitest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/mlcompare/comparator"
	"github.com/YuminosukeSato/mlcompare/config"
	"github.com/YuminosukeSato/mlcompare/pkg/errors"
	"github.com/YuminosukeSato/mlcompare/pkg/log"
)

func init() {
	errors.SetWarningHandler(nil)
}

type comparerFunc func(raw []byte) (*comparator.ComparisonResult, error)

func (f comparerFunc) CompareModels(raw []byte) (*comparator.ComparisonResult, error) {
	return f(raw)
}

func newTestServer(t *testing.T, cmp Comparer, mutate ...func(*config.Config)) *Server {
	t.Helper()
	cfg := config.GetDefaultConfig()
	cfg.ML.NJobs = 2
	for _, m := range mutate {
		m(cfg)
	}
	logger, _ := log.NewTestLogger(log.LevelDebug)
	if cmp == nil {
		cmp = comparator.New(
			comparator.WithLogger(logger),
			comparator.WithConfig(comparator.Config{TestSize: cfg.ML.TestSize, RandomState: cfg.ML.RandomState, NJobs: cfg.ML.NJobs}),
		)
	}
	return NewServer(cfg, cmp, WithLogger(logger))
}

// writeUpload は一時ディレクトリにアップロード用のファイルを書き出す
func writeUpload(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func blobsCSV() string {
	var b strings.Builder
	b.WriteString("f1,f2,customer_id\n")
	for i := 0; i < 30; i++ {
		c := float64(i % 3)
		fmt.Fprintf(&b, "%.2f,%.2f,%d\n", c*10+float64(i%5)*0.1, float64(i%7)*0.1, i)
	}
	return b.String()
}

func TestHealth(t *testing.T) {
	apitest.New().
		Handler(newTestServer(t, nil).Handler()).
		Get("/health").
		Expect(t).
		Status(http.StatusOK).
		Body(`{"status":"healthy"}`).
		End()
}

func TestCompareClustering(t *testing.T) {
	apitest.New().
		Handler(newTestServer(t, nil).Handler()).
		Post("/api/v1/compare").
		MultipartFile("file", writeUpload(t, "customers.csv", blobsCSV())).
		Expect(t).
		Status(http.StatusOK).
		Assert(func(res *http.Response, _ *http.Request) error {
			var result comparator.ComparisonResult
			if err := json.NewDecoder(res.Body).Decode(&result); err != nil {
				return err
			}
			if result.TaskType != "clustering" || len(result.Models) != 1 {
				return fmt.Errorf("unexpected result: %+v", result)
			}
			return nil
		}).
		End()
}

func TestCompareRejectsNonCSV(t *testing.T) {
	apitest.New().
		Handler(newTestServer(t, nil).Handler()).
		Post("/api/v1/compare").
		MultipartFile("file", writeUpload(t, "data.txt", "a,b\n1,2\n")).
		Expect(t).
		Status(http.StatusBadRequest).
		Body(`{"detail":"Only CSV files are supported"}`).
		End()
}

func TestCompareRejectsMissingFile(t *testing.T) {
	apitest.New().
		Handler(newTestServer(t, nil).Handler()).
		Post("/api/v1/compare").
		MultipartFormData("other", "value").
		Expect(t).
		Status(http.StatusBadRequest).
		Body(`{"detail":"No file uploaded"}`).
		End()
}

func TestCompareRejectsLargeFile(t *testing.T) {
	srv := newTestServer(t, nil, func(c *config.Config) { c.Upload.MaxFileSize = 64 })
	apitest.New().
		Handler(srv.Handler()).
		Post("/api/v1/compare").
		MultipartFile("file", writeUpload(t, "big.csv", blobsCSV())).
		Expect(t).
		Status(http.StatusRequestEntityTooLarge).
		Body(`{"detail":"File size exceeds maximum limit of 64 bytes"}`).
		End()
}

func TestCompareProcessingError(t *testing.T) {
	apitest.New().
		Handler(newTestServer(t, nil).Handler()).
		Post("/api/v1/compare").
		MultipartFile("file", writeUpload(t, "ragged.csv", "a,b,target\n1,2,0\n3,4\n")).
		Expect(t).
		Status(http.StatusInternalServerError).
		Assert(func(res *http.Response, _ *http.Request) error {
			var body ErrorResponse
			if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
				return err
			}
			if !strings.HasPrefix(body.Detail, "Error processing dataset: parsing") {
				return fmt.Errorf("unexpected detail %q", body.Detail)
			}
			return nil
		}).
		End()
}

func TestComparePanicIsHidden(t *testing.T) {
	cmp := comparerFunc(func([]byte) (*comparator.ComparisonResult, error) { panic("boom") })
	apitest.New().
		Handler(newTestServer(t, cmp).Handler()).
		Post("/api/v1/compare").
		MultipartFile("file", writeUpload(t, "data.csv", blobsCSV())).
		Expect(t).
		Status(http.StatusInternalServerError).
		Body(`{"detail":"Internal server error"}`).
		End()
}

func TestCompareBusy(t *testing.T) {
	called := false
	cmp := comparerFunc(func([]byte) (*comparator.ComparisonResult, error) {
		called = true
		return &comparator.ComparisonResult{}, nil
	})
	srv := newTestServer(t, cmp, func(c *config.Config) {
		c.Server.MaxConcurrent = 1
		c.Server.MaxWaitTime = 20 * time.Millisecond
	})
	require.NoError(t, srv.limiter.Acquire(context.Background(), 1))
	defer srv.limiter.Release(1)

	apitest.New().
		Handler(srv.Handler()).
		Post("/api/v1/compare").
		MultipartFile("file", writeUpload(t, "data.csv", blobsCSV())).
		Expect(t).
		Status(http.StatusServiceUnavailable).
		End()
	assert.False(t, called)
}

func TestCORS(t *testing.T) {
	handler := newTestServer(t, nil).Handler()
	apitest.New().
		Handler(handler).
		Get("/health").
		Header("Origin", "http://localhost:5173").
		Expect(t).
		Status(http.StatusOK).
		Header("Access-Control-Allow-Origin", "http://localhost:5173").
		Header("Access-Control-Allow-Credentials", "true").
		End()
	apitest.New().
		Handler(handler).
		Get("/health").
		Header("Origin", "http://evil.example.com").
		Expect(t).
		Status(http.StatusOK).
		HeaderNotPresent("Access-Control-Allow-Origin").
		End()
}

func TestMetricsEndpoint(t *testing.T) {
	RejectedUploadsTotal.WithLabelValues(ReasonFileType).Add(0)
	apitest.New().
		Handler(newTestServer(t, nil).Handler()).
		Get("/metrics").
		Expect(t).
		Status(http.StatusOK).
		Assert(func(res *http.Response, _ *http.Request) error {
			body, err := io.ReadAll(res.Body)
			if err != nil {
				return err
			}
			if !strings.Contains(string(body), "mlcompare_server_rejected_uploads_total") {
				return errors.New("rejected upload counter not exported")
			}
			return nil
		}).
		End()
}

func TestRunShutsDownOnCancel(t *testing.T) {
	srv := newTestServer(t, nil, func(c *config.Config) {
		c.Server.Host = "127.0.0.1"
		c.Server.Port = 0
	})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
}
