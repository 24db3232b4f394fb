package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/reoring/oaskema/internal/logging"
	"github.com/reoring/oaskema/middleware"
	"github.com/reoring/oaskema/openapi"
)

const petstore = "../../openapi/testdata/petstore.yaml"

func run(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var out, errb bytes.Buffer
	cmd := newRootCmd(strings.NewReader(stdin), &out, &errb)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errb.String(), err
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o644))
	return p
}

func TestValidate_OK(t *testing.T) {
	body := writeFile(t, t.TempDir(), "body.json", `{"baskets":[{"name":"smaug","mass":900,"fire_range":30}]}`)
	out, _, err := run(t, "", "validate", "--spec", petstore, "--path", "/save_the_pets", body)
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)
}

func TestValidate_InvalidFromStdin(t *testing.T) {
	out, _, err := run(t, `{"baskets":[{"name":"smaug","mass":900,"fire_range":30,"speed":20}]}`,
		"validate", "--spec", petstore, "-X", "post", "-p", "/save_the_pets", "-")
	require.ErrorIs(t, err, errInvalid)
	assert.Equal(t, "NotExistPropertyDefinition: properties speed are not defined in baskets[0]\n", out)
}

func TestValidate_JSONOutput(t *testing.T) {
	out, _, err := run(t, `{"baskets":[{"name":"smaug","mass":900}]}`,
		"validate", "--spec", petstore, "--path", "/save_the_pets", "--output", "json")
	require.ErrorIs(t, err, errInvalid)

	var p middleware.ErrorPayload
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, "required", p.Error.Code)
	assert.Equal(t, "/baskets/0", p.Error.Pointer)
	assert.Equal(t, []string{"fire_range"}, p.Error.Names)
}

func TestValidate_YAMLBody(t *testing.T) {
	out, _, err := run(t, "baskets:\n  - name: smaug\n    mass: 900\n    fire_range: 30\n",
		"validate", "--spec", petstore, "--path", "/save_the_pets", "-t", "application/yaml")
	// The operation only declares application/json.
	require.Error(t, err)
	assert.NotErrorIs(t, err, errInvalid)
	assert.Empty(t, out)
}

func TestValidate_SchemaAndResponse(t *testing.T) {
	out, _, err := run(t, `{"id":1,"name":"rex"}`, "validate", "--spec", petstore, "--schema", "Pet")
	require.NoError(t, err)
	assert.Equal(t, "ok\n", out)

	out, _, err = run(t, `{"id":"1","name":"rex"}`, "validate", "--spec", petstore, "--path", "/save_the_pets", "--status", "200")
	require.ErrorIs(t, err, errInvalid)
	assert.Contains(t, out, "InvalidType")

	_, _, err = run(t, `{}`, "validate", "--spec", petstore, "--schema", "Nope")
	assert.ErrorContains(t, err, "Nope")
}

func TestValidate_Usage(t *testing.T) {
	_, _, err := run(t, "", "validate", "--spec", petstore)
	assert.ErrorContains(t, err, "--path")

	_, _, err = run(t, "", "validate", "--path", "/x")
	assert.ErrorContains(t, err, "--spec")

	_, _, err = run(t, "", "--log-level", "loud", "validate", "--spec", petstore, "--path", "/x")
	assert.ErrorContains(t, err, "loud")
}

func TestValidate_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	abs, err := filepath.Abs(petstore)
	require.NoError(t, err)
	cfg := writeFile(t, dir, "oaskema.yaml", "spec: "+abs+"\nvalidation:\n  collect_all: true\nlog:\n  level: error\n")

	out, _, err := run(t, `{"baskets":[{"name":1,"mass":900,"speed":1}]}`,
		"validate", "--config", cfg, "--path", "/save_the_pets")
	require.ErrorIs(t, err, errInvalid)
	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "NotExistRequiredKey"))
}

func TestInspect(t *testing.T) {
	out, _, err := run(t, "", "inspect", "--spec", petstore)
	require.NoError(t, err)
	assert.Contains(t, out, "/save_the_pets")
	assert.Contains(t, out, "saveThePets")
	assert.Contains(t, out, "application/*,application/json")
	assert.Contains(t, out, "schemas: ")
	assert.Contains(t, out, "Dragon")

	out, _, err = run(t, "", "inspect", "--spec", petstore, "--schema", "Dragon")
	require.NoError(t, err)
	var js map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &js))
	assert.Contains(t, js, "allOf")
}

func TestProxyHandler(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		b, _ := io.ReadAll(r.Body)
		_, _ = w.Write(b)
	}))
	defer upstream.Close()
	target, err := url.Parse(upstream.URL)
	require.NoError(t, err)

	doc, err := openapi.LoadFile(context.Background(), petstore, openapi.Options{})
	require.NoError(t, err)
	promReg := prometheus.NewRegistry()
	h := newProxyHandler(middleware.Static(doc), target, promReg,
		middleware.Options{Metrics: middleware.NewMetrics(promReg)}, logging.NewNop())

	good := `{"baskets":[{"name":"smaug","mass":900,"fire_range":30}]}`
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/save_the_pets", strings.NewReader(good))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, good, rec.Body.String())

	rec = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodPost, "/save_the_pets", strings.NewReader(`{"baskets":[{}]}`))
	req.Header.Set("Content-Type", "application/json")
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.EqualValues(t, 1, hits.Load())

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `oaskema_validations_total{kind="required",result="invalid"} 1`)
}
