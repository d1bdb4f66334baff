package http

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
	"net/url"
	"testing"
	"time"

	"github.com/pquerna/otp/totp"
	"github.com/s4hq/s4/internal/s4/blob"
	"github.com/s4hq/s4/internal/s4/mail"
	"github.com/s4hq/s4/internal/s4/service"
	"github.com/s4hq/s4/internal/s4/store"
	"github.com/s4hq/s4/internal/s4/store/drivers/sqlite"
	"github.com/stretchr/testify/require"
)

func newTestRouter(t *testing.T) (*Router, store.Store) {
	t.Helper()

	st, err := sqlite.NewStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	require.NoError(t, st.ApplyMigrations())

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := NewRouter(st, logger, "test")
	r.Sessions = &service.SessionService{Store: st}
	r.Registration = &service.RegistrationService{Store: st, Mailer: &mail.LogMailer{Logger: logger}, Issuer: "S4"}
	r.Tree = &service.TreeService{Store: st}
	r.Files = &service.FileService{Store: st, Blobs: blob.NewMemoryStore()}
	r.ApplyRoutes()

	return r, st
}

func doGet(t *testing.T, r *Router, path string, params url.Values) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path+"?"+params.Encode(), nil)
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

// registerViaHTTP drives the whole registration pipeline through the public
// endpoints and returns the user's TOTP secret.
func registerViaHTTP(t *testing.T, r *Router, st store.Store, username, password string) string {
	t.Helper()
	ctx := context.Background()

	rec := doGet(t, r, "/validate_username", url.Values{"username": {username}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doGet(t, r, "/send_verification", url.Values{"username": {username}})
	require.Equal(t, http.StatusOK, rec.Code)

	vc, err := st.VerificationCodes().Get(ctx, username)
	require.NoError(t, err)
	rec = doGet(t, r, "/validate_verification", url.Values{"username": {username}, "code": {vc.Code}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doGet(t, r, "/send_twoFA_code", url.Values{"username": {username}})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "image/png", rec.Header().Get("Content-Type"))

	tfc, err := st.TwoFACodes().Get(ctx, username)
	require.NoError(t, err)
	code, err := totp.GenerateCode(tfc.Secret, time.Now())
	require.NoError(t, err)
	rec = doGet(t, r, "/validate_twoFA_code", url.Values{"username": {username}, "code": {code}})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doGet(t, r, "/create_user", url.Values{
		"username":         {username},
		"password":         {password},
		"securityQuestion": {"q"},
		"securityAnswer":   {"a"},
	})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeEnvelope(t, rec)
	require.Contains(t, body["successMessage"], "S4_SECRET_")

	return tfc.Secret
}

// loginViaHTTP establishes a fully verified session on the given window.
func loginViaHTTP(t *testing.T, r *Router, username, password, secret, windowID string) {
	t.Helper()

	rec := doGet(t, r, "/password_login", url.Values{
		"username": {username}, "password": {password}, "windowId": {windowID},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)
	rec = doGet(t, r, "/twoFA_login", url.Values{
		"username": {username}, "code": {code}, "windowId": {windowID},
	})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSystemEndpoints(t *testing.T) {
	r, _ := newTestRouter(t)

	rec := doGet(t, r, "/test_route", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "connection established", decodeEnvelope(t, rec)["successMessage"])

	rec = doGet(t, r, "/livez", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = doGet(t, r, "/readyz", url.Values{})
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestLoginEndpoints(t *testing.T) {
	r, st := newTestRouter(t)
	secret := registerViaHTTP(t, r, st, "alice@example.com", "hunter2!")

	t.Run("wrong password", func(t *testing.T) {
		rec := doGet(t, r, "/password_login", url.Values{
			"username": {"alice@example.com"}, "password": {"wrong"}, "windowId": {"w1"},
		})
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "password incorrect", decodeEnvelope(t, rec)["errorMessage"])
	})

	t.Run("unknown user", func(t *testing.T) {
		rec := doGet(t, r, "/password_login", url.Values{
			"username": {"bob@example.com"}, "password": {"x"}, "windowId": {"w1"},
		})
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "user does not exist", decodeEnvelope(t, rec)["errorMessage"])
	})

	t.Run("missing params", func(t *testing.T) {
		rec := doGet(t, r, "/password_login", url.Values{"username": {"alice@example.com"}})
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "no credentials found", decodeEnvelope(t, rec)["errorMessage"])
	})

	t.Run("full login authorizes directory access", func(t *testing.T) {
		loginViaHTTP(t, r, "alice@example.com", "hunter2!", secret, "w1")

		rec := doGet(t, r, "/get_entry_directory", url.Values{
			"username": {"alice@example.com"}, "windowId": {"w1"},
		})
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeEnvelope(t, rec)
		require.Equal(t, "entry", body["name"])
	})

	t.Run("wrong window is rejected", func(t *testing.T) {
		rec := doGet(t, r, "/get_entry_directory", url.Values{
			"username": {"alice@example.com"}, "windowId": {"other"},
		})
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "invalid session", decodeEnvelope(t, rec)["errorMessage"])
	})
}

func TestDirectoryEndpoints(t *testing.T) {
	r, st := newTestRouter(t)
	secret := registerViaHTTP(t, r, st, "alice@example.com", "hunter2!")
	loginViaHTTP(t, r, "alice@example.com", "hunter2!", secret, "w1")

	session := url.Values{"username": {"alice@example.com"}, "windowId": {"w1"}}

	rec := doGet(t, r, "/get_entry_directory", session)
	require.Equal(t, http.StatusOK, rec.Code)
	entryID := fmt.Sprintf("%.0f", decodeEnvelope(t, rec)["id"].(float64))

	t.Run("create and list", func(t *testing.T) {
		params := url.Values{
			"username": {"alice@example.com"}, "windowId": {"w1"},
			"directoryName": {"docs"}, "parentDirectoryId": {entryID},
		}
		rec := doGet(t, r, "/create_directory", params)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "docs", decodeEnvelope(t, rec)["name"])

		rec = doGet(t, r, "/create_directory", params)
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "directory already exists", decodeEnvelope(t, rec)["errorMessage"])

		listing := url.Values{
			"username": {"alice@example.com"}, "windowId": {"w1"},
			"directoryId": {entryID},
		}
		rec = doGet(t, r, "/get_directory", listing)
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeEnvelope(t, rec)
		require.Len(t, body["subdirectories"], 1)
	})

	t.Run("delete missing directory", func(t *testing.T) {
		params := url.Values{
			"username": {"alice@example.com"}, "windowId": {"w1"},
			"directoryId": {"999999"},
		}
		rec := doGet(t, r, "/delete_directory", params)
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "no directory found", decodeEnvelope(t, rec)["errorMessage"])
	})
}

func TestFileEndpoints(t *testing.T) {
	r, st := newTestRouter(t)
	secret := registerViaHTTP(t, r, st, "alice@example.com", "hunter2!")
	loginViaHTTP(t, r, "alice@example.com", "hunter2!", secret, "w1")

	session := url.Values{"username": {"alice@example.com"}, "windowId": {"w1"}}
	rec := doGet(t, r, "/get_entry_directory", session)
	require.Equal(t, http.StatusOK, rec.Code)
	entryID := int64(decodeEnvelope(t, rec)["id"].(float64))

	upload := func(t *testing.T, name, contentType string, payload []byte) *httptest.ResponseRecorder {
		t.Helper()

		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		require.NoError(t, mw.WriteField("username", "alice@example.com"))
		require.NoError(t, mw.WriteField("windowId", "w1"))

		meta, err := json.Marshal(map[string]any{
			"fileName": name, "directoryId": entryID, "contentType": contentType,
		})
		require.NoError(t, err)
		require.NoError(t, mw.WriteField("data", string(meta)))

		part, err := mw.CreateFormFile("file", name)
		require.NoError(t, err)
		_, err = part.Write(payload)
		require.NoError(t, err)
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/create_file", &buf)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		recorder := httptest.NewRecorder()
		r.ServeHTTP(recorder, req)
		return recorder
	}

	t.Run("upload and download round trip", func(t *testing.T) {
		rec := upload(t, "report.pdf", "application/pdf", []byte("%PDF"))
		require.Equal(t, http.StatusOK, rec.Code)
		body := decodeEnvelope(t, rec)
		require.Equal(t, "report.pdf", body["name"])
		s3Name := body["s3Name"].(string)
		fileID := fmt.Sprintf("%.0f", body["id"].(float64))

		params := url.Values{
			"username": {"alice@example.com"}, "windowId": {"w1"},
			"fileId": {fileID}, "fileName": {"report.pdf"}, "s3Name": {s3Name},
		}
		rec = doGet(t, r, "/get_file", params)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
		require.Equal(t, []byte("%PDF"), rec.Body.Bytes())

		rec = doGet(t, r, "/delete_file", params)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "report.pdf", decodeEnvelope(t, rec)["name"])

		rec = doGet(t, r, "/delete_file", params)
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "no file found", decodeEnvelope(t, rec)["errorMessage"])
	})

	t.Run("sentinel download bypasses the session gate", func(t *testing.T) {
		params := url.Values{"fileId": {"-1"}, "s3Name": {"anything"}}
		rec := doGet(t, r, "/get_file", params)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "dummy", decodeEnvelope(t, rec)["successMessage"])

		params = url.Values{"fileId": {"7"}, "s3Name": {"dummyData"}}
		rec = doGet(t, r, "/get_file", params)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, "dummy", decodeEnvelope(t, rec)["successMessage"])
	})

	t.Run("upload without extension", func(t *testing.T) {
		rec := upload(t, "noext", "text/plain", []byte("x"))
		require.Equal(t, http.StatusNotFound, rec.Code)
		require.Equal(t, "no file extension", decodeEnvelope(t, rec)["errorMessage"])
	})
}

func TestRegistrationEndpointsRejectExistingUser(t *testing.T) {
	r, st := newTestRouter(t)
	registerViaHTTP(t, r, st, "alice@example.com", "hunter2!")

	for _, path := range []string{"/validate_username", "/send_verification", "/send_twoFA_code"} {
		rec := doGet(t, r, path, url.Values{"username": {"alice@example.com"}})
		require.Equal(t, http.StatusNotFound, rec.Code, path)
		require.Equal(t, "user already exists", decodeEnvelope(t, rec)["errorMessage"], path)
	}
}
